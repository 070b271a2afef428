package api

import (
	"time"

	"github.com/runsheetapp/runsheet/internal/store"
)

const dateLayout = "2006-01-02"

// ActivityView is the wire form of one activity.
type ActivityView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AllottedSeconds int    `json:"allottedSeconds"`
	SpentSeconds    *int   `json:"spentSeconds,omitempty"`
	ExtraSeconds    *int   `json:"extraSeconds,omitempty"`
	GainedSeconds   *int   `json:"gainedSeconds,omitempty"`
	Status          string `json:"status"`
	Order           int    `json:"order"`
}

// EventView is the full event document returned by every mutation, so the
// client can reconcile ordering and derived fields against the server.
type EventView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Date          string         `json:"date"`
	LogoURL       *string        `json:"logoUrl,omitempty"`
	LogoAlignment *string        `json:"logoAlignment,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Activities    []ActivityView `json:"activities"`
}

// EventSummary is the list form without activities.
type EventSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toEventView(ev *store.Event) EventView {
	view := EventView{
		ID:            ev.ID,
		Name:          ev.Name,
		Date:          ev.Date.Format(dateLayout),
		LogoURL:       ev.LogoURL,
		LogoAlignment: ev.LogoAlignment,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.UpdatedAt,
		Activities:    make([]ActivityView, 0, len(ev.Activities)),
	}
	for _, a := range ev.Activities {
		view.Activities = append(view.Activities, ActivityView{
			ID:              a.ID,
			Name:            a.Name,
			AllottedSeconds: a.AllottedSeconds,
			SpentSeconds:    a.SpentSeconds,
			ExtraSeconds:    a.ExtraSeconds,
			GainedSeconds:   a.GainedSeconds,
			Status:          string(a.Status),
			Order:           a.Position,
		})
	}
	return view
}

func toEventSummary(ev store.Event) EventSummary {
	return EventSummary{
		ID:        ev.ID,
		Name:      ev.Name,
		Date:      ev.Date.Format(dateLayout),
		CreatedAt: ev.CreatedAt,
		UpdatedAt: ev.UpdatedAt,
	}
}

// activityDraftDoc is one activity in a create or bulk replace payload. An ID
// matching a stored activity keeps that activity's identity and lifecycle
// state instead of recreating it.
type activityDraftDoc struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	AllottedSeconds int    `json:"allottedSeconds"`
}

type createEventRequest struct {
	Name       string             `json:"name"`
	Date       string             `json:"date"`
	Activities []activityDraftDoc `json:"activities"`
}

// patchActivityRequest is the body of PATCH .../activities/{activityId}.
// extraSeconds and gainedSeconds are accepted for wire compatibility but
// ignored: the server derives them from spentSeconds.
type patchActivityRequest struct {
	Name            *string `json:"name"`
	AllottedSeconds *int    `json:"allottedSeconds"`
	SpentSeconds    *int    `json:"spentSeconds"`
	ExtraSeconds    *int    `json:"extraSeconds"`
	GainedSeconds   *int    `json:"gainedSeconds"`
	IsCompleted     *bool   `json:"isCompleted"`
	IsActive        *bool   `json:"isActive"`
	Order           *int    `json:"order"`
}

func (r patchActivityRequest) toPatch() store.ActivityPatch {
	return store.ActivityPatch{
		Name:            r.Name,
		AllottedSeconds: r.AllottedSeconds,
		SpentSeconds:    r.SpentSeconds,
		IsCompleted:     r.IsCompleted,
		IsActive:        r.IsActive,
		Position:        r.Order,
	}
}

// replaceEventRequest is the body of PUT /events/{eventId}. A present
// activities array fully replaces the set.
type replaceEventRequest struct {
	Name          *string             `json:"name"`
	Date          *string             `json:"date"`
	LogoURL       *string             `json:"logoUrl"`
	LogoAlignment *string             `json:"logoAlignment"`
	Activities    *[]activityDraftDoc `json:"activities"`
}

type createTokenRequest struct {
	Label      string `json:"label"`
	TTLSeconds int    `json:"ttlSeconds"`
}

type tokenView struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	Token      string     `json:"token,omitempty"`
}

func toDrafts(docs []activityDraftDoc) []store.ActivityDraft {
	drafts := make([]store.ActivityDraft, 0, len(docs))
	for _, d := range docs {
		drafts = append(drafts, store.ActivityDraft{
			ID:              d.ID,
			Name:            d.Name,
			AllottedSeconds: d.AllottedSeconds,
		})
	}
	return drafts
}
