package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultTxWaitTimeout bounds how long a mutation waits for a transaction
// slot when no explicit timeout is configured. Exceeding it surfaces as a
// retryable error, never a half-applied write.
const defaultTxWaitTimeout = 10 * time.Second

type eventRepo struct {
	pool          *pgxpool.Pool
	txWaitTimeout time.Duration
}

const activityColumns = `id, event_id, name, allotted_seconds, spent_seconds, extra_seconds, gained_seconds, status, position`

func (r *eventRepo) begin(ctx context.Context) (pgx.Tx, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.txWaitTimeout)
	defer cancel()
	return r.pool.BeginTx(waitCtx, pgx.TxOptions{})
}

// Create inserts an event and its initial activities in one transaction.
func (r *eventRepo) Create(ctx context.Context, accountID int64, name string, date time.Time, drafts []ActivityDraft) (*Event, error) {
	defer observeDB(ctx, "db.events.create")()

	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	eventID := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO events (id, account_id, name, event_date) VALUES ($1, $2, $3, $4)`,
		eventID, accountID, name, date)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	for i, d := range drafts {
		_, err = tx.Exec(ctx,
			`INSERT INTO activities (id, event_id, name, allotted_seconds, status, position)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), eventID, d.Name, d.AllottedSeconds, StatusPending, i)
		if err != nil {
			return nil, fmt.Errorf("insert activity: %w", err)
		}
	}

	ev, err := loadEventTx(ctx, tx, accountID, eventID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ev, nil
}

// GetOwned loads an event and its ordered activities. Absence and ownership
// mismatch both return ErrNotFound.
func (r *eventRepo) GetOwned(ctx context.Context, accountID int64, eventID string) (*Event, error) {
	defer observeDB(ctx, "db.events.get")()

	ev, err := scanEventRow(r.pool.QueryRow(ctx,
		`SELECT id, account_id, name, event_date, logo_url, logo_alignment, created_at, updated_at
         FROM events WHERE id=$1 AND account_id=$2`, eventID, accountID))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE event_id=$1 ORDER BY position`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ev.Activities, err = scanActivities(rows)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListByAccount returns the account's events, newest first, without
// activities loaded.
func (r *eventRepo) ListByAccount(ctx context.Context, accountID int64) ([]Event, error) {
	defer observeDB(ctx, "db.events.list")()

	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, name, event_date, logo_url, logo_alignment, created_at, updated_at
         FROM events WHERE account_id=$1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.Name, &ev.Date, &ev.LogoURL, &ev.LogoAlignment, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Delete removes an event; activities cascade.
func (r *eventRepo) Delete(ctx context.Context, accountID int64, eventID string) error {
	defer observeDB(ctx, "db.events.delete")()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM events WHERE id=$1 AND account_id=$2`, eventID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateActivity applies a partial update to one activity inside a single
// transaction. The event row and the activity rows are re-read under FOR
// UPDATE locks, so two concurrent starts serialize and the second demotes
// the first's running activity.
func (r *eventRepo) UpdateActivity(ctx context.Context, accountID int64, eventID, activityID string, patch ActivityPatch) (*Event, error) {
	defer observeDB(ctx, "db.activities.update")()

	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockEvent(ctx, tx, accountID, eventID); err != nil {
		return nil, err
	}

	activities, err := lockActivities(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	target := findActivity(activities, activityID)
	if target == nil {
		return nil, ErrNotFound
	}

	before := snapshotByID(activities)

	if patch.IsActive != nil && *patch.IsActive {
		demoteOtherRunning(activities, activityID)
	}
	applyPatch(target, patch)
	if patch.Position != nil {
		moveActivity(activities, activityID, *patch.Position)
	}

	if err := writeChangedActivities(ctx, tx, activities, before); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE events SET updated_at=NOW() WHERE id=$1`, eventID); err != nil {
		return nil, err
	}

	ev, err := loadEventTx(ctx, tx, accountID, eventID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ev, nil
}

// ReplaceActivities performs a diff-based structural replace. Drafts keep
// the identity (and lifecycle state) of stored activities whose IDs match;
// everything else is inserted or deleted. Positions follow draft order.
func (r *eventRepo) ReplaceActivities(ctx context.Context, accountID int64, eventID string, meta EventMeta, drafts []ActivityDraft) (*Event, error) {
	defer observeDB(ctx, "db.activities.replace")()

	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockEvent(ctx, tx, accountID, eventID); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET
            name = COALESCE($2, name),
            event_date = COALESCE($3, event_date),
            logo_url = COALESCE($4, logo_url),
            logo_alignment = COALESCE($5, logo_alignment),
            updated_at = NOW()
         WHERE id=$1`,
		eventID, meta.Name, meta.Date, meta.LogoURL, meta.LogoAlignment)
	if err != nil {
		return nil, fmt.Errorf("update event meta: %w", err)
	}

	if drafts != nil {
		existing, err := lockActivities(ctx, tx, eventID)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*Activity, len(existing))
		for i := range existing {
			byID[existing[i].ID] = &existing[i]
		}

		kept := make(map[string]struct{}, len(drafts))
		for pos, d := range drafts {
			if cur, ok := byID[d.ID]; d.ID != "" && ok {
				kept[d.ID] = struct{}{}
				cur.Name = d.Name
				cur.AllottedSeconds = d.AllottedSeconds
				if cur.Status == StatusCompleted && cur.SpentSeconds != nil {
					// A changed allotment on a kept completed row moves the
					// derived split with it.
					completeActivity(cur, *cur.SpentSeconds)
				}
				_, err = tx.Exec(ctx,
					`UPDATE activities SET name=$2, allotted_seconds=$3, spent_seconds=$4,
	                    extra_seconds=$5, gained_seconds=$6, position=$7 WHERE id=$1`,
					cur.ID, cur.Name, cur.AllottedSeconds, cur.SpentSeconds, cur.ExtraSeconds, cur.GainedSeconds, pos)
			} else {
				_, err = tx.Exec(ctx,
					`INSERT INTO activities (id, event_id, name, allotted_seconds, status, position)
                     VALUES ($1, $2, $3, $4, $5, $6)`,
					uuid.NewString(), eventID, d.Name, d.AllottedSeconds, StatusPending, pos)
			}
			if err != nil {
				return nil, fmt.Errorf("replace activity: %w", err)
			}
		}

		for id := range byID {
			if _, ok := kept[id]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, `DELETE FROM activities WHERE id=$1`, id); err != nil {
				return nil, fmt.Errorf("delete activity: %w", err)
			}
		}
	}

	ev, err := loadEventTx(ctx, tx, accountID, eventID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ev, nil
}

// lockEvent re-reads the event row under FOR UPDATE and verifies ownership.
func lockEvent(ctx context.Context, tx pgx.Tx, accountID int64, eventID string) error {
	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM events WHERE id=$1 AND account_id=$2 FOR UPDATE`,
		eventID, accountID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func lockActivities(ctx context.Context, tx pgx.Tx, eventID string) ([]Activity, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE event_id=$1 ORDER BY position FOR UPDATE`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

func loadEventTx(ctx context.Context, tx pgx.Tx, accountID int64, eventID string) (*Event, error) {
	ev, err := scanEventRow(tx.QueryRow(ctx,
		`SELECT id, account_id, name, event_date, logo_url, logo_alignment, created_at, updated_at
         FROM events WHERE id=$1 AND account_id=$2`, eventID, accountID))
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE event_id=$1 ORDER BY position`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ev.Activities, err = scanActivities(rows)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func scanEventRow(row pgx.Row) (*Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.AccountID, &ev.Name, &ev.Date, &ev.LogoURL, &ev.LogoAlignment, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanActivities(rows pgx.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.EventID, &a.Name, &a.AllottedSeconds, &a.SpentSeconds, &a.ExtraSeconds, &a.GainedSeconds, &a.Status, &a.Position); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func findActivity(activities []Activity, id string) *Activity {
	for i := range activities {
		if activities[i].ID == id {
			return &activities[i]
		}
	}
	return nil
}

func snapshotByID(activities []Activity) map[string]Activity {
	m := make(map[string]Activity, len(activities))
	for _, a := range activities {
		m[a.ID] = a
	}
	return m
}

func writeChangedActivities(ctx context.Context, tx pgx.Tx, activities []Activity, before map[string]Activity) error {
	for i := range activities {
		a := activities[i]
		if prev, ok := before[a.ID]; ok && activityEqual(prev, a) {
			continue
		}
		_, err := tx.Exec(ctx,
			`UPDATE activities SET name=$2, allotted_seconds=$3, spent_seconds=$4,
                extra_seconds=$5, gained_seconds=$6, status=$7, position=$8
             WHERE id=$1`,
			a.ID, a.Name, a.AllottedSeconds, a.SpentSeconds, a.ExtraSeconds, a.GainedSeconds, a.Status, a.Position)
		if err != nil {
			return fmt.Errorf("update activity %s: %w", a.ID, err)
		}
	}
	return nil
}

func activityEqual(a, b Activity) bool {
	return a.Name == b.Name &&
		a.AllottedSeconds == b.AllottedSeconds &&
		intPtrEqual(a.SpentSeconds, b.SpentSeconds) &&
		intPtrEqual(a.ExtraSeconds, b.ExtraSeconds) &&
		intPtrEqual(a.GainedSeconds, b.GainedSeconds) &&
		a.Status == b.Status &&
		a.Position == b.Position
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
