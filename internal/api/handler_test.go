package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/runsheetapp/runsheet/internal/auth"
	"github.com/runsheetapp/runsheet/internal/mutation"
	"github.com/runsheetapp/runsheet/internal/store"
)

type stubEventStore struct {
	event *store.Event
	err   error

	lastPatch  store.ActivityPatch
	lastDrafts []store.ActivityDraft
}

func (s *stubEventStore) Create(ctx context.Context, accountID int64, name string, date time.Time, drafts []store.ActivityDraft) (*store.Event, error) {
	s.lastDrafts = drafts
	return s.event, s.err
}

func (s *stubEventStore) GetOwned(ctx context.Context, accountID int64, eventID string) (*store.Event, error) {
	return s.event, s.err
}

func (s *stubEventStore) ListByAccount(ctx context.Context, accountID int64) ([]store.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []store.Event{*s.event}, nil
}

func (s *stubEventStore) Delete(ctx context.Context, accountID int64, eventID string) error {
	return s.err
}

func (s *stubEventStore) UpdateActivity(ctx context.Context, accountID int64, eventID, activityID string, patch store.ActivityPatch) (*store.Event, error) {
	s.lastPatch = patch
	return s.event, s.err
}

func (s *stubEventStore) ReplaceActivities(ctx context.Context, accountID int64, eventID string, meta store.EventMeta, drafts []store.ActivityDraft) (*store.Event, error) {
	s.lastDrafts = drafts
	return s.event, s.err
}

type stubTokenService struct{}

func (stubTokenService) CreateAPIToken(ctx context.Context, accountID int64, label string, ttl time.Duration) (string, *store.APIToken, error) {
	return "1:secret", &store.APIToken{ID: 1, AccountID: accountID, Label: label}, nil
}
func (stubTokenService) RevokeAPIToken(ctx context.Context, accountID, tokenID int64) error {
	return nil
}
func (stubTokenService) ListAPITokens(ctx context.Context, accountID int64) ([]store.APIToken, error) {
	return nil, nil
}

func intp(v int) *int { return &v }

func storedEvent() *store.Event {
	return &store.Event{
		ID:        "ev-1",
		AccountID: 7,
		Name:      "Launch day",
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Activities: []store.Activity{
			{ID: "a1", EventID: "ev-1", Name: "Welcome", AllottedSeconds: 180,
				Status: store.StatusCompleted, SpentSeconds: intp(150), ExtraSeconds: intp(0), GainedSeconds: intp(30), Position: 0},
			{ID: "a2", EventID: "ev-1", Name: "Keynote", AllottedSeconds: 1800,
				Status: store.StatusRunning, Position: 1},
		},
	}
}

// newTestServer mounts the handler behind a middleware that injects the
// authenticated account, mirroring the production router.
func newTestServer(t *testing.T, st *stubEventStore, authenticated bool) *httptest.Server {
	t.Helper()

	h := NewHandler(mutation.NewService(st, time.Second), stubTokenService{})
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		if authenticated {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					ctx := auth.WithAccount(req.Context(), &store.Account{ID: 7, Email: "op@example.com"})
					next.ServeHTTP(w, req.WithContext(ctx))
				})
			})
		}
		h.Routes(r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestPatchActivityReturnsFullEvent(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/events/ev-1/activities/a1",
		`{"isCompleted": true, "spentSeconds": 150}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view EventView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, "ev-1", view.ID)
	require.Len(t, view.Activities, 2)
	require.Equal(t, 0, view.Activities[0].Order)
	require.Equal(t, 1, view.Activities[1].Order)

	require.NotNil(t, st.lastPatch.IsCompleted)
	require.Equal(t, 150, *st.lastPatch.SpentSeconds)
}

func TestPatchActivityValidationReturns400(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/events/ev-1/activities/a1", `{}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatchActivityNotFoundReturns404(t *testing.T) {
	st := &stubEventStore{err: store.ErrNotFound}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/events/missing/activities/a1",
		`{"isActive": true}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatchActivityTransientReturns503(t *testing.T) {
	st := &stubEventStore{err: context.DeadlineExceeded}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/events/ev-1/activities/a1",
		`{"isActive": true}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, true, body["retryable"])
}

func TestPatchActivityFatalReturns500(t *testing.T) {
	st := &stubEventStore{err: errors.New("disk on fire")}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/events/ev-1/activities/a1",
		`{"isActive": true}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPatchActivityUnauthenticatedReturns401(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, false)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/v1/events/ev-1/activities/a1",
		`{"isActive": true}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReplaceEventPassesDraftOrder(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPut, srv.URL+"/v1/events/ev-1",
		`{"activities": [{"id": "a2", "name": "Keynote", "allottedSeconds": 1800}, {"name": "Wrap up", "allottedSeconds": 300}]}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, st.lastDrafts, 2)
	require.Equal(t, "a2", st.lastDrafts[0].ID)
	require.Empty(t, st.lastDrafts[1].ID)
}

func TestReplaceEventRejectsBadDate(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPut, srv.URL+"/v1/events/ev-1", `{"date": "June 1st"}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateEventReturns201(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, true)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/events",
		`{"name": "Launch day", "date": "2025-06-01", "activities": [{"name": "Welcome", "allottedSeconds": 180}]}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestExportEventCSV(t *testing.T) {
	st := &stubEventStore{event: storedEvent()}
	srv := newTestServer(t, st, true)

	resp, err := http.Get(srv.URL + "/v1/events/ev-1/export")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
}
