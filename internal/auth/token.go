package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/runsheetapp/runsheet/internal/store"
)

var errInvalidToken = errors.New("invalid api token")

// CreateAPIToken mints a bearer credential of the form "<id>:<secret>". Only
// the bcrypt hash of the secret is stored; the plaintext is returned once and
// never again recoverable.
func (s *Service) CreateAPIToken(ctx context.Context, accountID int64, label string, ttl time.Duration) (string, *store.APIToken, error) {
	secret, err := randomToken(24)
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	token := store.APIToken{
		AccountID: accountID,
		Label:     label,
		TokenHash: string(hash),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		token.ExpiresAt = &expires
	}

	created, err := s.store.APITokens.Create(ctx, token)
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("%d:%s", created.ID, secret), created, nil
}

// ValidateAPIToken checks a raw "<id>:<secret>" credential and returns the
// owning account. Revoked and expired tokens fail closed.
func (s *Service) ValidateAPIToken(ctx context.Context, raw string) (*store.Account, error) {
	idPart, secret, ok := strings.Cut(raw, ":")
	if !ok || secret == "" {
		return nil, errInvalidToken
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, errInvalidToken
	}

	token, err := s.store.APITokens.GetByID(ctx, id)
	if err != nil {
		return nil, errInvalidToken
	}
	if token.RevokedAt != nil {
		return nil, errInvalidToken
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return nil, errInvalidToken
	}

	if err := bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(secret)); err != nil {
		return nil, errInvalidToken
	}

	_ = s.store.APITokens.TouchLastUsed(ctx, token.ID)
	return s.store.Accounts.GetByID(ctx, token.AccountID)
}

// RevokeAPIToken revokes one of the account's tokens.
func (s *Service) RevokeAPIToken(ctx context.Context, accountID, tokenID int64) error {
	return s.store.APITokens.Revoke(ctx, accountID, tokenID)
}

// ListAPITokens lists the account's tokens, hashes excluded by the caller.
func (s *Service) ListAPITokens(ctx context.Context, accountID int64) ([]store.APIToken, error) {
	return s.store.APITokens.ListByAccount(ctx, accountID)
}
