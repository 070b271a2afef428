package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// accountRepo implements AccountRepository.
type accountRepo struct {
	pool *pgxpool.Pool
}

func (r *accountRepo) UpsertOIDCAccount(ctx context.Context, subject, email string) (*Account, error) {
	defer observeDB(ctx, "db.accounts.upsert")()

	var a Account
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (oidc_subject, email, last_login_at)
         VALUES ($1, $2, NOW())
         ON CONFLICT (oidc_subject) DO UPDATE SET email=EXCLUDED.email, last_login_at=NOW()
         RETURNING id, oidc_subject, email, created_at, last_login_at`,
		subject, email).Scan(&a.ID, &a.OIDCSubject, &a.Email, &a.CreatedAt, &a.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*Account, error) {
	defer observeDB(ctx, "db.accounts.get")()

	var a Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, oidc_subject, email, created_at, last_login_at FROM accounts WHERE id=$1`,
		id).Scan(&a.ID, &a.OIDCSubject, &a.Email, &a.CreatedAt, &a.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// sessionRepo implements SessionRepository.
type sessionRepo struct {
	pool *pgxpool.Pool
}

func (r *sessionRepo) Create(ctx context.Context, s Session) error {
	defer observeDB(ctx, "db.sessions.create")()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, account_id, user_agent, ip_address, expires_at)
         VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.AccountID, s.UserAgent, s.IPAddress, s.ExpiresAt)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	defer observeDB(ctx, "db.sessions.get")()

	var s Session
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, user_agent, ip_address, created_at, expires_at, last_seen_at
         FROM sessions WHERE id=$1`,
		id).Scan(&s.ID, &s.AccountID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) ListByAccount(ctx context.Context, accountID int64) ([]Session, error) {
	defer observeDB(ctx, "db.sessions.list")()

	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, user_agent, ip_address, created_at, expires_at, last_seen_at
         FROM sessions WHERE account_id=$1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.AccountID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepo) TouchLastSeen(ctx context.Context, id string) error {
	defer observeDB(ctx, "db.sessions.touch")()

	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "db.sessions.delete")()

	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	return err
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	defer observeDB(ctx, "db.sessions.purge")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// apiTokenRepo implements APITokenRepository.
type apiTokenRepo struct {
	pool *pgxpool.Pool
}

func (r *apiTokenRepo) Create(ctx context.Context, t APIToken) (*APIToken, error) {
	defer observeDB(ctx, "db.tokens.create")()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO api_tokens (account_id, label, token_hash, expires_at)
         VALUES ($1, $2, $3, $4)
         RETURNING id, created_at`,
		t.AccountID, t.Label, t.TokenHash, t.ExpiresAt).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *apiTokenRepo) GetByID(ctx context.Context, id int64) (*APIToken, error) {
	defer observeDB(ctx, "db.tokens.get")()

	var t APIToken
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at
         FROM api_tokens WHERE id=$1`,
		id).Scan(&t.ID, &t.AccountID, &t.Label, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *apiTokenRepo) ListByAccount(ctx context.Context, accountID int64) ([]APIToken, error) {
	defer observeDB(ctx, "db.tokens.list")()

	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at
         FROM api_tokens WHERE account_id=$1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []APIToken
	for rows.Next() {
		var t APIToken
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Label, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *apiTokenRepo) Revoke(ctx context.Context, accountID, id int64) error {
	defer observeDB(ctx, "db.tokens.revoke")()

	tag, err := r.pool.Exec(ctx,
		`UPDATE api_tokens SET revoked_at=NOW() WHERE id=$1 AND account_id=$2 AND revoked_at IS NULL`,
		id, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *apiTokenRepo) TouchLastUsed(ctx context.Context, id int64) error {
	defer observeDB(ctx, "db.tokens.touch")()

	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *apiTokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	defer observeDB(ctx, "db.tokens.purge")()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM api_tokens WHERE revoked_at IS NOT NULL OR (expires_at IS NOT NULL AND expires_at < NOW())`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
