package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func transportFor(t *testing.T, status int, body string) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewHTTPTransport(srv.URL, "1:secret")
}

func TestTransportDecodesEvent(t *testing.T) {
	tr := transportFor(t, http.StatusOK,
		`{"id":"ev-1","name":"Launch day","activities":[{"id":"a","name":"A","allottedSeconds":180,"status":"pending","order":0}]}`)

	ev, err := tr.GetEvent(context.Background(), "ev-1")

	require.NoError(t, err)
	require.Equal(t, "ev-1", ev.ID)
	require.Len(t, ev.Activities, 1)
}

func TestTransportClassifiesStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"error":"not found"}`, ErrNotFound},
		{"validation", http.StatusBadRequest, `{"error":"must not be negative","field":"spentSeconds"}`, ErrValidation},
		{"service unavailable", http.StatusServiceUnavailable, `{"error":"try again","retryable":true}`, ErrTransient},
		{"rate limited", http.StatusTooManyRequests, ``, ErrTransient},
		{"unauthenticated", http.StatusUnauthorized, ``, ErrAuth},
		{"server fault", http.StatusInternalServerError, `{"error":"boom"}`, ErrFatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := transportFor(t, tc.status, tc.body)

			_, err := tr.PatchActivity(context.Background(), "ev-1", "a", Patch{})

			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthErrorIsNeitherRetriedNorRolledBack(t *testing.T) {
	// A rejected credential cannot be fixed by replaying the payload, and it
	// is not a validation/not-found rollback case either.
	require.False(t, IsTransient(ErrAuth))
	require.False(t, isPermanent(ErrAuth))
	require.True(t, IsAuth(ErrAuth))
}
