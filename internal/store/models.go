package store

import "time"

// Account represents an operator authenticated via OIDC.
type Account struct {
	ID          int64
	OIDCSubject string
	Email       string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Session is a persisted web session referenced by a cookie.
type Session struct {
	ID         string
	AccountID  int64
	UserAgent  *string
	IPAddress  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}

// APIToken is a per-client bearer credential for programmatic access.
type APIToken struct {
	ID         int64
	AccountID  int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}

// ActivityStatus is the lifecycle state of an activity.
type ActivityStatus string

const (
	StatusPending   ActivityStatus = "pending"
	StatusRunning   ActivityStatus = "running"
	StatusCompleted ActivityStatus = "completed"
)

// Event is a run sheet: an ordered list of timed activities owned by one account.
type Event struct {
	ID            string
	AccountID     int64
	Name          string
	Date          time.Time
	LogoURL       *string
	LogoAlignment *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Activities    []Activity
}

// Activity is one timed segment of an event. SpentSeconds, ExtraSeconds and
// GainedSeconds are nil until the activity completes; once completed all
// three are set and spent = allotted + extra - gained holds.
type Activity struct {
	ID              string
	EventID         string
	Name            string
	AllottedSeconds int
	SpentSeconds    *int
	ExtraSeconds    *int
	GainedSeconds   *int
	Status          ActivityStatus
	Position        int
}

// ActivityPatch carries the optional fields of a partial activity update.
// Nil fields are left untouched.
type ActivityPatch struct {
	Name            *string
	AllottedSeconds *int
	SpentSeconds    *int
	IsCompleted     *bool
	IsActive        *bool
	Position        *int
}

// EventMeta carries the optional event-level fields of a full replace.
type EventMeta struct {
	Name          *string
	Date          *time.Time
	LogoURL       *string
	LogoAlignment *string
}

// ActivityDraft describes one activity in a structural replace. An empty ID
// means a new activity; a non-empty ID preserves the stored row's identity.
type ActivityDraft struct {
	ID              string
	Name            string
	AllottedSeconds int
}
