// Package client implements the run sheet sync engine used by interactive
// clients: an activity state machine applied optimistically, a dispatcher
// that reconciles local state against the server, and a retry queue for
// transient failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ActivityStatus mirrors the server lifecycle states.
type ActivityStatus string

const (
	StatusPending   ActivityStatus = "pending"
	StatusRunning   ActivityStatus = "running"
	StatusCompleted ActivityStatus = "completed"
)

// Activity is the client view of one timed segment.
type Activity struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	AllottedSeconds int            `json:"allottedSeconds"`
	SpentSeconds    *int           `json:"spentSeconds,omitempty"`
	ExtraSeconds    *int           `json:"extraSeconds,omitempty"`
	GainedSeconds   *int           `json:"gainedSeconds,omitempty"`
	Status          ActivityStatus `json:"status"`
	Order           int            `json:"order"`
}

// Event is the full event document as returned by the server.
type Event struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}

// Patch is a partial activity update payload.
type Patch struct {
	Name            *string `json:"name,omitempty"`
	AllottedSeconds *int    `json:"allottedSeconds,omitempty"`
	SpentSeconds    *int    `json:"spentSeconds,omitempty"`
	IsCompleted     *bool   `json:"isCompleted,omitempty"`
	IsActive        *bool   `json:"isActive,omitempty"`
	Order           *int    `json:"order,omitempty"`
}

// Draft is one activity in a bulk replace payload.
type Draft struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	AllottedSeconds int    `json:"allottedSeconds"`
}

// Replace is the bulk replace payload for structural edits.
type Replace struct {
	Name       *string `json:"name,omitempty"`
	Date       *string `json:"date,omitempty"`
	Activities []Draft `json:"activities,omitempty"`
}

// Transport issues mutation requests against a server.
type Transport interface {
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	PatchActivity(ctx context.Context, eventID, activityID string, patch Patch) (*Event, error)
	ReplaceEvent(ctx context.Context, eventID string, replace Replace) (*Event, error)
}

// Failure classes mirrored from the server taxonomy.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrTransient  = errors.New("transient failure")
	ErrAuth       = errors.New("authentication rejected")
	ErrFatal      = errors.New("request failed")
)

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsValidation reports whether err is a rejected payload.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether the record is absent or not owned.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAuth reports whether the server rejected the caller's credentials.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }

// isPermanent covers failures that must never be retried with the same payload.
func isPermanent(err error) bool { return IsValidation(err) || IsNotFound(err) }

// HTTPTransport talks to the run sheet REST API with a bearer token.
type HTTPTransport struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	return t.do(ctx, http.MethodGet, "/v1/events/"+eventID, nil)
}

func (t *HTTPTransport) PatchActivity(ctx context.Context, eventID, activityID string, patch Patch) (*Event, error) {
	return t.do(ctx, http.MethodPatch, "/v1/events/"+eventID+"/activities/"+activityID, patch)
}

func (t *HTTPTransport) ReplaceEvent(ctx context.Context, eventID string, replace Replace) (*Event, error) {
	return t.do(ctx, http.MethodPut, "/v1/events/"+eventID, replace)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, payload any) (*Event, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFatal, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		// Timeouts and connection trouble are retryable.
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ev Event
		if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
			return nil, fmt.Errorf("%w: decoding response: %v", ErrFatal, err)
		}
		return &ev, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrValidation, readErrorBody(resp.Body))
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuth
	default:
		return nil, fmt.Errorf("%w: status %d", ErrFatal, resp.StatusCode)
	}
}

func readErrorBody(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Error == "" {
		return "request rejected"
	}
	if body.Field != "" {
		return body.Field + ": " + body.Error
	}
	return body.Error
}
