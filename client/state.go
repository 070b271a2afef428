package client

import (
	"errors"
	"fmt"
	"sort"
)

// State machine errors. They abort the dispatch before anything is sent.
var (
	ErrNotPending      = errors.New("activity is not pending")
	ErrNotRunning      = errors.New("activity is not running")
	ErrAnotherRunning  = errors.New("another activity is running")
	ErrAlreadyComplete = errors.New("activity is already completed")
	ErrEventStarted    = errors.New("event already has started activities")
	ErrUnknownActivity = errors.New("unknown activity")
	ErrNegativeElapsed = errors.New("elapsed seconds must not be negative")
)

// start transitions the target to running. Guard: target pending, nothing
// else running. Every other activity is forced to non-running even though the
// invariant should already hold.
func start(activities []Activity, activityID string) ([]Activity, error) {
	target := findByID(activities, activityID)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	if target.Status != StatusPending {
		return nil, ErrNotPending
	}
	for _, a := range activities {
		if a.ID != activityID && a.Status == StatusRunning {
			return nil, ErrAnotherRunning
		}
	}

	next := cloneActivities(activities)
	for i := range next {
		if next[i].ID == activityID {
			next[i].Status = StatusRunning
			next[i].SpentSeconds = nil
			next[i].ExtraSeconds = nil
			next[i].GainedSeconds = nil
		} else if next[i].Status == StatusRunning {
			next[i].Status = StatusPending
		}
	}
	return next, nil
}

// stop completes a running activity with the measured elapsed seconds,
// deriving extra and gained so that spent = allotted + extra - gained.
func stop(activities []Activity, activityID string, elapsedSeconds int) ([]Activity, error) {
	target := findByID(activities, activityID)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	if target.Status != StatusRunning {
		return nil, ErrNotRunning
	}
	if elapsedSeconds < 0 {
		// Rejected before the optimistic apply, so the bad value never
		// reaches the wire either.
		return nil, ErrNegativeElapsed
	}

	next := cloneActivities(activities)
	for i := range next {
		if next[i].ID != activityID {
			continue
		}
		extra := max(0, elapsedSeconds-next[i].AllottedSeconds)
		gained := max(0, next[i].AllottedSeconds-elapsedSeconds)
		next[i].Status = StatusCompleted
		next[i].SpentSeconds = &elapsedSeconds
		next[i].ExtraSeconds = &extra
		next[i].GainedSeconds = &gained
	}
	return next, nil
}

// skip completes an activity without timing it: zero spent, the full
// allotment gained. Skipping an already completed activity is a no-op, which
// makes skip idempotent.
func skip(activities []Activity, activityID string) ([]Activity, bool, error) {
	target := findByID(activities, activityID)
	if target == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	if target.Status == StatusCompleted {
		return cloneActivities(activities), false, nil
	}

	next := cloneActivities(activities)
	for i := range next {
		if next[i].ID != activityID {
			continue
		}
		zero := 0
		gained := next[i].AllottedSeconds
		next[i].Status = StatusCompleted
		next[i].SpentSeconds = &zero
		next[i].ExtraSeconds = &zero
		next[i].GainedSeconds = &gained
	}
	return next, true, nil
}

// reorder assigns order from the given ID sequence. Only permitted before
// any activity has been started: once timing has begun, structure is frozen.
func reorder(activities []Activity, sequence []string) ([]Activity, error) {
	for _, a := range activities {
		if a.Status != StatusPending {
			return nil, ErrEventStarted
		}
	}
	if len(sequence) != len(activities) {
		return nil, fmt.Errorf("%w: sequence length %d, have %d activities", ErrUnknownActivity, len(sequence), len(activities))
	}

	byID := make(map[string]Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}

	next := make([]Activity, 0, len(sequence))
	for pos, id := range sequence {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownActivity, id)
		}
		delete(byID, id)
		a.Order = pos
		next = append(next, a)
	}
	return next, nil
}

// CurrentActivity returns the first activity (by order) that has not
// completed. A nil result means the event is complete.
func CurrentActivity(activities []Activity) *Activity {
	ordered := cloneActivities(activities)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	for i := range ordered {
		if ordered[i].Status != StatusCompleted {
			return &ordered[i]
		}
	}
	return nil
}

func findByID(activities []Activity, id string) *Activity {
	for i := range activities {
		if activities[i].ID == id {
			return &activities[i]
		}
	}
	return nil
}

func cloneActivities(activities []Activity) []Activity {
	next := make([]Activity, len(activities))
	copy(next, activities)
	return next
}
