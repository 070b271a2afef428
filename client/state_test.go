package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pending(id, name string, allotted, order int) Activity {
	return Activity{ID: id, Name: name, AllottedSeconds: allotted, Status: StatusPending, Order: order}
}

func threeActivities() []Activity {
	return []Activity{
		pending("a", "A", 180, 0),
		pending("b", "B", 300, 1),
		pending("c", "C", 600, 2),
	}
}

func TestStartGuards(t *testing.T) {
	acts := threeActivities()

	next, err := start(acts, "a")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, next[0].Status)

	// Second start while another is running is rejected locally.
	_, err = start(next, "b")
	require.ErrorIs(t, err, ErrAnotherRunning)

	// Starting a completed activity is rejected.
	stopped, err := stop(next, "a", 100)
	require.NoError(t, err)
	_, err = start(stopped, "a")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestStopUnderrun(t *testing.T) {
	acts := threeActivities()
	running, err := start(acts, "a")
	require.NoError(t, err)

	// allotted=180, elapsed=150: 30 gained, nothing extra.
	next, err := stop(running, "a", 150)
	require.NoError(t, err)

	a := next[0]
	require.Equal(t, StatusCompleted, a.Status)
	require.Equal(t, 150, *a.SpentSeconds)
	require.Equal(t, 0, *a.ExtraSeconds)
	require.Equal(t, 30, *a.GainedSeconds)
}

func TestStopOverrun(t *testing.T) {
	acts := threeActivities()
	running, err := start(acts, "a")
	require.NoError(t, err)

	// allotted=180, elapsed=200: 20 extra, nothing gained.
	next, err := stop(running, "a", 200)
	require.NoError(t, err)

	a := next[0]
	require.Equal(t, 200, *a.SpentSeconds)
	require.Equal(t, 20, *a.ExtraSeconds)
	require.Equal(t, 0, *a.GainedSeconds)
}

func TestStopRejectsNegativeElapsed(t *testing.T) {
	running, err := start(threeActivities(), "a")
	require.NoError(t, err)

	_, err = stop(running, "a", -5)
	require.ErrorIs(t, err, ErrNegativeElapsed)
}

func TestStopRequiresRunning(t *testing.T) {
	_, err := stop(threeActivities(), "a", 100)
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestSkipGainsFullAllotment(t *testing.T) {
	next, changed, err := skip(threeActivities(), "b")
	require.NoError(t, err)
	require.True(t, changed)

	b := next[1]
	require.Equal(t, StatusCompleted, b.Status)
	require.Equal(t, 0, *b.SpentSeconds)
	require.Equal(t, 0, *b.ExtraSeconds)
	require.Equal(t, 300, *b.GainedSeconds)
}

func TestSkipIsIdempotent(t *testing.T) {
	once, changed, err := skip(threeActivities(), "b")
	require.NoError(t, err)
	require.True(t, changed)

	twice, changed, err := skip(once, "b")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, once, twice)
}

func TestReorderAssignsPositions(t *testing.T) {
	// [A, B, C] reordered to [C, A, B].
	next, err := reorder(threeActivities(), []string{"c", "a", "b"})
	require.NoError(t, err)

	require.Equal(t, "c", next[0].ID)
	require.Equal(t, 0, next[0].Order)
	require.Equal(t, "a", next[1].ID)
	require.Equal(t, 1, next[1].Order)
	require.Equal(t, "b", next[2].ID)
	require.Equal(t, 2, next[2].Order)
}

func TestReorderRejectedOnceStarted(t *testing.T) {
	running, err := start(threeActivities(), "a")
	require.NoError(t, err)

	_, err = reorder(running, []string{"c", "a", "b"})
	require.ErrorIs(t, err, ErrEventStarted)
}

func TestReorderRejectsUnknownID(t *testing.T) {
	_, err := reorder(threeActivities(), []string{"a", "b", "x"})
	require.ErrorIs(t, err, ErrUnknownActivity)
}

func TestCurrentActivity(t *testing.T) {
	acts := threeActivities()
	require.Equal(t, "a", CurrentActivity(acts).ID)

	skipped, _, err := skip(acts, "a")
	require.NoError(t, err)
	require.Equal(t, "b", CurrentActivity(skipped).ID)

	allDone := skipped
	for _, id := range []string{"b", "c"} {
		var e error
		allDone, _, e = skip(allDone, id)
		require.NoError(t, e)
	}
	require.Nil(t, CurrentActivity(allDone))
}
