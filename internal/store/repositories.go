package store

import (
	"context"
	"time"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	UpsertOIDCAccount(ctx context.Context, subject, email string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
}

// EventRepository handles run sheets and their activities. Every mutating
// operation runs in a single transaction and returns the freshly loaded
// event so callers can reconcile ordering and derived fields.
type EventRepository interface {
	Create(ctx context.Context, accountID int64, name string, date time.Time, drafts []ActivityDraft) (*Event, error)
	GetOwned(ctx context.Context, accountID int64, eventID string) (*Event, error)
	ListByAccount(ctx context.Context, accountID int64) ([]Event, error)
	Delete(ctx context.Context, accountID int64, eventID string) error

	// UpdateActivity applies a partial update to one activity. When the
	// patch marks the activity running, every other running activity in
	// the event is demoted in the same transaction.
	UpdateActivity(ctx context.Context, accountID int64, eventID, activityID string, patch ActivityPatch) (*Event, error)

	// ReplaceActivities performs a diff-based structural replace: drafts
	// with matching IDs are updated in place, new drafts inserted, and
	// stored activities absent from drafts deleted. Positions follow
	// draft order. A nil drafts slice updates event metadata only.
	ReplaceActivities(ctx context.Context, accountID int64, eventID string, meta EventMeta, drafts []ActivityDraft) (*Event, error)
}

// SessionRepository handles web session storage.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	ListByAccount(ctx context.Context, accountID int64) ([]Session, error)
	TouchLastSeen(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// APITokenRepository handles bearer token storage.
type APITokenRepository interface {
	Create(ctx context.Context, t APIToken) (*APIToken, error)
	GetByID(ctx context.Context, id int64) (*APIToken, error)
	ListByAccount(ctx context.Context, accountID int64) ([]APIToken, error)
	Revoke(ctx context.Context, accountID, id int64) error
	TouchLastUsed(ctx context.Context, id int64) error
	PurgeExpired(ctx context.Context) (int64, error)
}
