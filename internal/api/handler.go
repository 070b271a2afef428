// Package api exposes the REST surface of the run sheet service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/runsheetapp/runsheet/internal/auth"
	"github.com/runsheetapp/runsheet/internal/export"
	"github.com/runsheetapp/runsheet/internal/mutation"
	"github.com/runsheetapp/runsheet/internal/store"
)

// Handler serves the /v1 API. All routes assume the auth middleware has
// already attached an account to the context.
type Handler struct {
	mutations *mutation.Service
	tokens    TokenService
}

// TokenService is the slice of the auth service the token endpoints need.
type TokenService interface {
	CreateAPIToken(ctx context.Context, accountID int64, label string, ttl time.Duration) (string, *store.APIToken, error)
	RevokeAPIToken(ctx context.Context, accountID, tokenID int64) error
	ListAPITokens(ctx context.Context, accountID int64) ([]store.APIToken, error)
}

func NewHandler(mutations *mutation.Service, tokens TokenService) *Handler {
	return &Handler{mutations: mutations, tokens: tokens}
}

// Routes registers the API endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/events", h.createEvent)
	r.Get("/events", h.listEvents)
	r.Get("/events/{eventID}", h.getEvent)
	r.Put("/events/{eventID}", h.replaceEvent)
	r.Delete("/events/{eventID}", h.deleteEvent)
	r.Patch("/events/{eventID}/activities/{activityID}", h.patchActivity)
	r.Get("/events/{eventID}/export", h.exportEvent)

	r.Post("/tokens", h.createToken)
	r.Get("/tokens", h.listTokens)
	r.Delete("/tokens/{tokenID}", h.revokeToken)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeBadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	ev, err := h.mutations.CreateEvent(r.Context(), account.ID, req.Name, date, toDrafts(req.Activities))
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventView(ev))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	events, err := h.mutations.ListEvents(r.Context(), account.ID)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}

	summaries := make([]EventSummary, 0, len(events))
	for _, ev := range events {
		summaries = append(summaries, toEventSummary(ev))
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ev, err := h.mutations.GetEvent(r.Context(), account.ID, chi.URLParam(r, "eventID"))
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventView(ev))
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.mutations.DeleteEvent(r.Context(), account.ID, chi.URLParam(r, "eventID")); err != nil {
		writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// patchActivity is the partial update entry point: any subset of activity
// fields, with start/stop/skip expressed through isActive and isCompleted.
func (h *Handler) patchActivity(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req patchActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}

	ev, err := h.mutations.PatchActivity(r.Context(), account.ID,
		chi.URLParam(r, "eventID"), chi.URLParam(r, "activityID"), req.toPatch())
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventView(ev))
}

// replaceEvent is the bulk replace entry point for structural edits.
func (h *Handler) replaceEvent(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req replaceEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}

	meta := store.EventMeta{
		Name:          req.Name,
		LogoURL:       req.LogoURL,
		LogoAlignment: req.LogoAlignment,
	}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			writeBadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		meta.Date = &date
	}

	var drafts []store.ActivityDraft
	if req.Activities != nil {
		drafts = toDrafts(*req.Activities)
		if drafts == nil {
			drafts = []store.ActivityDraft{}
		}
	}

	ev, err := h.mutations.ReplaceEvent(r.Context(), account.ID, chi.URLParam(r, "eventID"), meta, drafts)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventView(ev))
}

// exportEvent emits the event's activities as CSV or JSON rows.
func (h *Handler) exportEvent(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ev, err := h.mutations.GetEvent(r.Context(), account.ID, chi.URLParam(r, "eventID"))
	if err != nil {
		writeMutationError(w, r, err)
		return
	}

	rows := export.Rows(ev)
	switch r.URL.Query().Get("format") {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+ev.Name+`.csv"`)
		if err := export.WriteCSV(w, rows); err != nil {
			writeMutationError(w, r, err)
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, rows); err != nil {
			writeMutationError(w, r, err)
		}
	default:
		writeBadRequest(w, "format must be csv or json")
	}
}

func (h *Handler) createToken(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}
	if req.Label == "" {
		writeBadRequest(w, "label is required")
		return
	}

	raw, token, err := h.tokens.CreateAPIToken(r.Context(), account.ID, req.Label,
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenView{
		ID:        token.ID,
		Label:     token.Label,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
		Token:     raw,
	})
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	tokens, err := h.tokens.ListAPITokens(r.Context(), account.ID)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}

	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, tokenView{
			ID:         t.ID,
			Label:      t.Label,
			CreatedAt:  t.CreatedAt,
			ExpiresAt:  t.ExpiresAt,
			RevokedAt:  t.RevokedAt,
			LastUsedAt: t.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		writeBadRequest(w, "invalid token id")
		return
	}

	if err := h.tokens.RevokeAPIToken(r.Context(), account.ID, id); err != nil {
		writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
