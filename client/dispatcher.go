package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SyncStatus is the aggregate health of the local copy.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

// OpKind names a dispatchable mutation.
type OpKind string

const (
	OpStart   OpKind = "start"
	OpStop    OpKind = "stop"
	OpSkip    OpKind = "skip"
	OpReorder OpKind = "reorder"
	OpReplace OpKind = "replace"
)

// Operation is one replayable mutation.
type Operation struct {
	Kind       OpKind
	EventID    string
	ActivityID string
	Patch      Patch
	Replace    *Replace
}

// ErrInFlight marks a dispatch rejected because one of the same kind has not
// settled yet. The local state is untouched, making rapid double-activation
// a no-op.
var ErrInFlight = errors.New("operation of this kind already in flight")

// Dispatcher owns one event's local state and keeps it converging toward the
// server. Mutations apply optimistically, then reconcile against the
// server-confirmed document.
type Dispatcher struct {
	mu        sync.Mutex
	transport Transport
	queue     *RetryQueue

	event     *Event // optimistic local state
	confirmed *Event // last server-confirmed state
	status    SyncStatus
	inFlight  map[OpKind]bool
	notices   []string
}

// NewDispatcher starts from a server-confirmed event document.
func NewDispatcher(transport Transport, event *Event) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		queue:     NewRetryQueue(),
		event:     cloneEvent(event),
		confirmed: cloneEvent(event),
		status:    SyncSynced,
		inFlight:  make(map[OpKind]bool),
	}
}

// Event returns a copy of the current local state.
func (d *Dispatcher) Event() *Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneEvent(d.event)
}

// Status returns the aggregate sync status.
func (d *Dispatcher) Status() SyncStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Notices drains pending blocking notifications (permanent failures the user
// must resolve with a refresh).
func (d *Dispatcher) Notices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	notices := d.notices
	d.notices = nil
	return notices
}

// QueueLen reports how many operations await retry.
func (d *Dispatcher) QueueLen() int { return d.queue.Len() }

// Start marks an activity running.
func (d *Dispatcher) Start(ctx context.Context, activityID string) error {
	active := true
	return d.dispatch(ctx, Operation{
		Kind:       OpStart,
		ActivityID: activityID,
		Patch:      Patch{IsActive: &active},
	}, func(activities []Activity) ([]Activity, bool, error) {
		next, err := start(activities, activityID)
		return next, true, err
	})
}

// Stop completes the running activity with the measured elapsed seconds.
func (d *Dispatcher) Stop(ctx context.Context, activityID string, elapsedSeconds int) error {
	completed := true
	return d.dispatch(ctx, Operation{
		Kind:       OpStop,
		ActivityID: activityID,
		Patch:      Patch{IsCompleted: &completed, SpentSeconds: &elapsedSeconds},
	}, func(activities []Activity) ([]Activity, bool, error) {
		next, err := stop(activities, activityID, elapsedSeconds)
		return next, true, err
	})
}

// Skip completes an activity without timing it. Skipping a completed
// activity is a no-op.
func (d *Dispatcher) Skip(ctx context.Context, activityID string) error {
	completed := true
	return d.dispatch(ctx, Operation{
		Kind:       OpSkip,
		ActivityID: activityID,
		Patch:      Patch{IsCompleted: &completed},
	}, func(activities []Activity) ([]Activity, bool, error) {
		return skip(activities, activityID)
	})
}

// Reorder replaces the order assignment from the given ID sequence. Only
// permitted while every activity is still pending.
func (d *Dispatcher) Reorder(ctx context.Context, sequence []string) error {
	d.mu.Lock()
	next, err := reorder(d.event.Activities, sequence)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	drafts := make([]Draft, 0, len(next))
	for _, a := range next {
		drafts = append(drafts, Draft{ID: a.ID, Name: a.Name, AllottedSeconds: a.AllottedSeconds})
	}
	d.mu.Unlock()

	return d.dispatch(ctx, Operation{
		Kind:    OpReorder,
		Replace: &Replace{Activities: drafts},
	}, func(activities []Activity) ([]Activity, bool, error) {
		next, err := reorder(activities, sequence)
		return next, true, err
	})
}

// dispatch runs the optimistic-update protocol: apply locally, send, then
// reconcile or roll back depending on the failure class.
func (d *Dispatcher) dispatch(ctx context.Context, op Operation, transition func([]Activity) ([]Activity, bool, error)) error {
	d.mu.Lock()

	if d.inFlight[op.Kind] {
		d.mu.Unlock()
		return ErrInFlight
	}

	next, changed, err := transition(d.event.Activities)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if !changed {
		d.mu.Unlock()
		return nil
	}

	op.EventID = d.event.ID
	rollback := cloneEvent(d.event)
	d.event.Activities = next
	d.status = SyncSyncing
	d.inFlight[op.Kind] = true
	d.mu.Unlock()

	serverEvent, sendErr := d.send(ctx, op)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight[op.Kind] = false

	switch {
	case sendErr == nil:
		// Server state is the source of truth for derived fields and order.
		d.event = cloneEvent(serverEvent)
		d.confirmed = cloneEvent(serverEvent)
		if d.queue.Len() == 0 {
			d.status = SyncSynced
		} else {
			d.status = SyncError
		}
		return nil

	case IsTransient(sendErr):
		// The user already observed the effect; keep it and replay later.
		d.queue.Enqueue(op)
		d.status = SyncError
		return nil

	case isPermanent(sendErr):
		if op.Kind == OpStart {
			// Not yet visible as settled; roll back to the confirmed state.
			d.event = rollback
			if d.queue.Len() == 0 {
				d.status = SyncSynced
			} else {
				d.status = SyncError
			}
		} else {
			// The user already saw the stop/skip take effect locally; it may
			// not be durable, so demand a refresh.
			d.status = SyncError
			d.notices = append(d.notices,
				fmt.Sprintf("%s of activity %s was rejected by the server; refresh to reconcile", op.Kind, op.ActivityID))
		}
		return sendErr

	default:
		// Fatal: keep the optimistic state, do not retry.
		d.status = SyncError
		d.notices = append(d.notices,
			fmt.Sprintf("%s failed with an unexpected error; refresh recommended", op.Kind))
		return sendErr
	}
}

func (d *Dispatcher) send(ctx context.Context, op Operation) (*Event, error) {
	if op.Replace != nil {
		return d.transport.ReplaceEvent(ctx, op.EventID, *op.Replace)
	}
	return d.transport.PatchActivity(ctx, op.EventID, op.ActivityID, op.Patch)
}

// Flush replays queued operations once. Success drops the item and adopts
// the server document; transient failure increments the retry count and
// keeps the item until it has been retried MaxRetries times; permanent and
// fatal failures drop the item immediately.
func (d *Dispatcher) Flush(ctx context.Context) {
	items := d.queue.take()
	if len(items) == 0 {
		return
	}

	d.mu.Lock()
	d.status = SyncSyncing
	d.mu.Unlock()

	failed := false
	for _, item := range items {
		serverEvent, err := d.send(ctx, item.Op)
		switch {
		case err == nil:
			d.mu.Lock()
			d.event = cloneEvent(serverEvent)
			d.confirmed = cloneEvent(serverEvent)
			d.mu.Unlock()

		case IsTransient(err):
			failed = true
			item.RetryCount++
			if item.RetryCount < MaxRetries {
				d.queue.put(item)
			}
			// At MaxRetries the item is dropped; the error status stands
			// until the user reloads.

		default:
			// Permanent or fatal: replaying the same payload cannot succeed.
			failed = true
		}
	}

	d.mu.Lock()
	if !failed && d.queue.Len() == 0 {
		d.status = SyncSynced
	} else {
		d.status = SyncError
	}
	d.mu.Unlock()
}

// Run replays the queue every RetryInterval until ctx is cancelled. A new
// cycle never begins before the previous one settles.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Flush(ctx)
		}
	}
}

// Refresh discards local state for the server's current document and clears
// the retry queue: a user-initiated load supersedes anything still queued.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	d.mu.Lock()
	eventID := d.event.ID
	d.mu.Unlock()

	serverEvent, err := d.transport.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	d.queue.take()
	d.mu.Lock()
	d.event = cloneEvent(serverEvent)
	d.confirmed = cloneEvent(serverEvent)
	d.status = SyncSynced
	d.mu.Unlock()
	return nil
}

func cloneEvent(ev *Event) *Event {
	if ev == nil {
		return nil
	}
	clone := *ev
	clone.Activities = cloneActivities(ev.Activities)
	return &clone
}
