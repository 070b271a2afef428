package auth

import (
	"context"

	"github.com/runsheetapp/runsheet/internal/store"
)

type contextKey string

const (
	contextKeyAccount   contextKey = "account"
	contextKeySessionID contextKey = "session_id"
)

func WithAccount(ctx context.Context, account *store.Account) context.Context {
	return context.WithValue(ctx, contextKeyAccount, account)
}

func AccountFromContext(ctx context.Context) (*store.Account, bool) {
	a, ok := ctx.Value(contextKeyAccount).(*store.Account)
	return a, ok
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySessionID, sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(contextKeySessionID).(string)
	return s
}
