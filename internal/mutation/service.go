package mutation

import (
	"context"
	"log"
	"time"

	"github.com/runsheetapp/runsheet/internal/metrics"
	"github.com/runsheetapp/runsheet/internal/store"
)

const (
	maxNameLength    = 200
	maxActivities    = 500
	maxDurationHours = 24
)

// EventStore is the persistence surface the service needs. *store.Store's
// Events field satisfies it; tests supply fakes.
type EventStore interface {
	Create(ctx context.Context, accountID int64, name string, date time.Time, drafts []store.ActivityDraft) (*store.Event, error)
	GetOwned(ctx context.Context, accountID int64, eventID string) (*store.Event, error)
	ListByAccount(ctx context.Context, accountID int64) ([]store.Event, error)
	Delete(ctx context.Context, accountID int64, eventID string) error
	UpdateActivity(ctx context.Context, accountID int64, eventID, activityID string, patch store.ActivityPatch) (*store.Event, error)
	ReplaceActivities(ctx context.Context, accountID int64, eventID string, meta store.EventMeta, drafts []store.ActivityDraft) (*store.Event, error)
}

// Service validates and executes run sheet mutations. Every write runs under
// an execution deadline so a stuck transaction surfaces as a transient error
// instead of hanging the caller.
type Service struct {
	events      EventStore
	execTimeout time.Duration
}

func NewService(events EventStore, execTimeout time.Duration) *Service {
	if execTimeout <= 0 {
		execTimeout = 20 * time.Second
	}
	return &Service{events: events, execTimeout: execTimeout}
}

// CreateEvent creates a run sheet with its initial activities.
func (s *Service) CreateEvent(ctx context.Context, accountID int64, name string, date time.Time, drafts []store.ActivityDraft) (*store.Event, error) {
	const op = "create_event"

	if err := validateEventName(op, name); err != nil {
		return nil, s.fail(op, err)
	}
	if err := validateDrafts(op, drafts); err != nil {
		return nil, s.fail(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	ev, err := s.events.Create(ctx, accountID, name, date, drafts)
	if err != nil {
		return nil, s.fail(op, err)
	}
	metrics.IncMutationOutcome(op, "ok")
	return ev, nil
}

// GetEvent loads one run sheet with its activities.
func (s *Service) GetEvent(ctx context.Context, accountID int64, eventID string) (*store.Event, error) {
	const op = "get_event"
	ev, err := s.events.GetOwned(ctx, accountID, eventID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return ev, nil
}

// ListEvents returns the account's run sheets without activities.
func (s *Service) ListEvents(ctx context.Context, accountID int64) ([]store.Event, error) {
	const op = "list_events"
	events, err := s.events.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return events, nil
}

// DeleteEvent removes a run sheet and its activities.
func (s *Service) DeleteEvent(ctx context.Context, accountID int64, eventID string) error {
	const op = "delete_event"

	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	if err := s.events.Delete(ctx, accountID, eventID); err != nil {
		return s.fail(op, err)
	}
	metrics.IncMutationOutcome(op, "ok")
	return nil
}

// PatchActivity applies a partial update to one activity. Marking an
// activity running demotes any other running activity in the same
// transaction, so the event never ends up with two running activities.
func (s *Service) PatchActivity(ctx context.Context, accountID int64, eventID, activityID string, patch store.ActivityPatch) (*store.Event, error) {
	const op = "patch_activity"

	if err := validatePatch(op, patch); err != nil {
		return nil, s.fail(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	ev, err := s.events.UpdateActivity(ctx, accountID, eventID, activityID, patch)
	if err != nil {
		return nil, s.fail(op, err)
	}
	metrics.IncMutationOutcome(op, "ok")
	return ev, nil
}

// ReplaceEvent updates event metadata and structurally replaces the activity
// list. Drafts carrying the ID of a stored activity keep that activity's
// identity and lifecycle state.
func (s *Service) ReplaceEvent(ctx context.Context, accountID int64, eventID string, meta store.EventMeta, drafts []store.ActivityDraft) (*store.Event, error) {
	const op = "replace_event"

	if meta.Name != nil {
		if err := validateEventName(op, *meta.Name); err != nil {
			return nil, s.fail(op, err)
		}
	}
	if drafts != nil {
		if err := validateDrafts(op, drafts); err != nil {
			return nil, s.fail(op, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	ev, err := s.events.ReplaceActivities(ctx, accountID, eventID, meta, drafts)
	if err != nil {
		return nil, s.fail(op, err)
	}
	metrics.IncMutationOutcome(op, "ok")
	return ev, nil
}

// fail classifies err, records the outcome, and logs anything unexpected.
func (s *Service) fail(op string, err error) *Error {
	me := classify(op, err)
	metrics.IncMutationOutcome(op, string(me.Class))
	switch me.Class {
	case ClassFatal:
		log.Printf("[ERROR] mutation %s failed: %v", op, err)
	case ClassTransient:
		log.Printf("[WARN] mutation %s hit transient error: %v", op, err)
	}
	return me
}

func validateEventName(op, name string) error {
	if name == "" {
		return invalid(op, "name", "must not be empty")
	}
	if len(name) > maxNameLength {
		return invalid(op, "name", "too long")
	}
	return nil
}

func validateDrafts(op string, drafts []store.ActivityDraft) error {
	if len(drafts) > maxActivities {
		return invalid(op, "activities", "too many activities")
	}
	seen := make(map[string]struct{}, len(drafts))
	for _, d := range drafts {
		if d.ID != "" {
			if _, dup := seen[d.ID]; dup {
				return invalid(op, "activities.id", "duplicate activity id")
			}
			seen[d.ID] = struct{}{}
		}
		if d.Name == "" {
			return invalid(op, "activities.name", "must not be empty")
		}
		if len(d.Name) > maxNameLength {
			return invalid(op, "activities.name", "too long")
		}
		if d.AllottedSeconds < 0 {
			return invalid(op, "activities.allottedSeconds", "must not be negative")
		}
		if d.AllottedSeconds > maxDurationHours*3600 {
			return invalid(op, "activities.allottedSeconds", "exceeds maximum duration")
		}
	}
	return nil
}

func validatePatch(op string, patch store.ActivityPatch) error {
	if patch.Name == nil && patch.AllottedSeconds == nil && patch.SpentSeconds == nil &&
		patch.IsCompleted == nil && patch.IsActive == nil && patch.Position == nil {
		return invalid(op, "", "empty patch")
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return invalid(op, "name", "must not be empty")
		}
		if len(*patch.Name) > maxNameLength {
			return invalid(op, "name", "too long")
		}
	}
	if patch.AllottedSeconds != nil && *patch.AllottedSeconds < 0 {
		return invalid(op, "allottedSeconds", "must not be negative")
	}
	if patch.SpentSeconds != nil && *patch.SpentSeconds < 0 {
		return invalid(op, "spentSeconds", "must not be negative")
	}
	if patch.SpentSeconds != nil && (patch.IsCompleted == nil || !*patch.IsCompleted) {
		return invalid(op, "spentSeconds", "only valid when completing the activity")
	}
	if patch.IsActive != nil && *patch.IsActive && patch.IsCompleted != nil && *patch.IsCompleted {
		return invalid(op, "isActive", "cannot both start and complete an activity")
	}
	if patch.Position != nil && *patch.Position < 0 {
		return invalid(op, "position", "must not be negative")
	}
	return nil
}
