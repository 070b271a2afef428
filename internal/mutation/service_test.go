package mutation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/runsheetapp/runsheet/internal/store"
)

type fakeEventStore struct {
	event *store.Event
	err   error

	lastPatch  store.ActivityPatch
	lastDrafts []store.ActivityDraft
	calls      int
}

func (f *fakeEventStore) Create(ctx context.Context, accountID int64, name string, date time.Time, drafts []store.ActivityDraft) (*store.Event, error) {
	f.calls++
	f.lastDrafts = drafts
	return f.event, f.err
}

func (f *fakeEventStore) GetOwned(ctx context.Context, accountID int64, eventID string) (*store.Event, error) {
	f.calls++
	return f.event, f.err
}

func (f *fakeEventStore) ListByAccount(ctx context.Context, accountID int64) ([]store.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []store.Event{*f.event}, nil
}

func (f *fakeEventStore) Delete(ctx context.Context, accountID int64, eventID string) error {
	f.calls++
	return f.err
}

func (f *fakeEventStore) UpdateActivity(ctx context.Context, accountID int64, eventID, activityID string, patch store.ActivityPatch) (*store.Event, error) {
	f.calls++
	f.lastPatch = patch
	return f.event, f.err
}

func (f *fakeEventStore) ReplaceActivities(ctx context.Context, accountID int64, eventID string, meta store.EventMeta, drafts []store.ActivityDraft) (*store.Event, error) {
	f.calls++
	f.lastDrafts = drafts
	return f.event, f.err
}

func testEvent() *store.Event {
	return &store.Event{
		ID:        "11111111-1111-1111-1111-111111111111",
		AccountID: 1,
		Name:      "Launch day",
		Activities: []store.Activity{
			{ID: "a1", Name: "Doors open", AllottedSeconds: 600, Status: store.StatusPending, Position: 0},
		},
	}
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestPatchActivityRejectsEmptyPatch(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	_, err := svc.PatchActivity(context.Background(), 1, "ev", "a1", store.ActivityPatch{})

	require.Error(t, err)
	require.Equal(t, ClassValidation, ClassOf(err))
	require.Zero(t, fake.calls, "invalid patch must not reach the store")
}

func TestPatchActivityRejectsSpentWithoutCompletion(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	_, err := svc.PatchActivity(context.Background(), 1, "ev", "a1",
		store.ActivityPatch{SpentSeconds: intPtr(120)})

	require.Error(t, err)
	require.Equal(t, ClassValidation, ClassOf(err))
}

func TestPatchActivityRejectsStartAndComplete(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	_, err := svc.PatchActivity(context.Background(), 1, "ev", "a1",
		store.ActivityPatch{IsActive: boolPtr(true), IsCompleted: boolPtr(true)})

	require.Error(t, err)
	require.Equal(t, ClassValidation, ClassOf(err))
}

func TestPatchActivityPassesPatchThrough(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	ev, err := svc.PatchActivity(context.Background(), 1, "ev", "a1",
		store.ActivityPatch{IsCompleted: boolPtr(true), SpentSeconds: intPtr(480)})

	require.NoError(t, err)
	require.Equal(t, "Launch day", ev.Name)
	require.Equal(t, 1, fake.calls)
	require.NotNil(t, fake.lastPatch.IsCompleted)
	require.Equal(t, 480, *fake.lastPatch.SpentSeconds)
}

func TestPatchActivityClassifiesNotFound(t *testing.T) {
	fake := &fakeEventStore{err: store.ErrNotFound}
	svc := NewService(fake, time.Second)

	_, err := svc.PatchActivity(context.Background(), 1, "ev", "missing",
		store.ActivityPatch{IsActive: boolPtr(true)})

	require.Error(t, err)
	require.Equal(t, ClassNotFound, ClassOf(err))
}

func TestPatchActivityClassifiesTimeoutAsTransient(t *testing.T) {
	fake := &fakeEventStore{err: context.DeadlineExceeded}
	svc := NewService(fake, time.Second)

	_, err := svc.PatchActivity(context.Background(), 1, "ev", "a1",
		store.ActivityPatch{IsActive: boolPtr(true)})

	require.Error(t, err)
	require.Equal(t, ClassTransient, ClassOf(err))
}

func TestClassOfPostgresCodes(t *testing.T) {
	cases := []struct {
		code string
		want Class
	}{
		{"40001", ClassTransient}, // serialization failure
		{"55P03", ClassTransient}, // lock not available
		{"40P01", ClassTransient}, // deadlock
		{"57014", ClassTransient}, // statement timeout
		{"08006", ClassTransient}, // connection failure
		{"23514", ClassFatal},     // check violation
		{"42703", ClassFatal},     // undefined column
	}
	for _, tc := range cases {
		got := ClassOf(&pgconn.PgError{Code: tc.code})
		require.Equal(t, tc.want, got, "code %s", tc.code)
	}
}

func TestClassOfUnknownErrorIsFatal(t *testing.T) {
	require.Equal(t, ClassFatal, ClassOf(errors.New("boom")))
}

func TestCreateEventValidatesName(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	_, err := svc.CreateEvent(context.Background(), 1, "", time.Now(), nil)

	require.Error(t, err)
	require.Equal(t, ClassValidation, ClassOf(err))
	require.Zero(t, fake.calls)
}

func TestCreateEventValidatesDrafts(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	_, err := svc.CreateEvent(context.Background(), 1, "Launch day", time.Now(),
		[]store.ActivityDraft{{Name: "Setup", AllottedSeconds: -1}})

	require.Error(t, err)
	require.Equal(t, ClassValidation, ClassOf(err))
}

func TestReplaceEventPassesDraftsThrough(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	drafts := []store.ActivityDraft{
		{ID: "a1", Name: "Doors open", AllottedSeconds: 600},
		{Name: "Closing", AllottedSeconds: 300},
	}
	_, err := svc.ReplaceEvent(context.Background(), 1, "ev", store.EventMeta{}, drafts)

	require.NoError(t, err)
	require.Len(t, fake.lastDrafts, 2)
}

func TestReplaceEventRejectsDuplicateDraftIDs(t *testing.T) {
	fake := &fakeEventStore{event: testEvent()}
	svc := NewService(fake, time.Second)

	drafts := []store.ActivityDraft{
		{ID: "a1", Name: "Doors open", AllottedSeconds: 600},
		{ID: "a1", Name: "Doors open again", AllottedSeconds: 300},
		{Name: "Closing", AllottedSeconds: 120},
	}
	_, err := svc.ReplaceEvent(context.Background(), 1, "ev", store.EventMeta{}, drafts)

	require.Error(t, err)
	require.Equal(t, ClassValidation, ClassOf(err))
	require.Zero(t, fake.calls, "duplicate ids must not reach the store")
}

func TestDeleteEventClassifiesNotFound(t *testing.T) {
	fake := &fakeEventStore{err: store.ErrNotFound}
	svc := NewService(fake, time.Second)

	err := svc.DeleteEvent(context.Background(), 1, "missing")

	require.Error(t, err)
	require.Equal(t, ClassNotFound, ClassOf(err))
}
