package auth

import (
	"context"
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/runsheetapp/runsheet/internal/config"
	"github.com/runsheetapp/runsheet/internal/store"
)

// SessionManager issues and resolves web sessions. The cookie carries only
// the session ID; the session row in the database is the source of truth, so
// sessions can be listed and revoked server side.
type SessionManager struct {
	cfg        *config.Config
	sessions   store.SessionRepository
	cookieName string
	codec      *securecookie.SecureCookie
	secure     bool
	ttl        time.Duration
}

func NewSessionManager(cfg *config.Config, sessions store.SessionRepository) *SessionManager {
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	hashKey := hash[:]

	// Derive an AES-256 sized block key to avoid invalid key length errors.
	blockKey := hash[:]
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(cfg.Session.TTL / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{
		cfg:        cfg,
		sessions:   sessions,
		cookieName: "runsheet_session",
		codec:      sc,
		secure:     secure,
		ttl:        cfg.Session.TTL,
	}
}

// Issue persists a new session and sets the cookie referencing it.
func (m *SessionManager) Issue(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID int64) error {
	now := time.Now()
	sess := store.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ExpiresAt: now.Add(m.ttl),
	}
	if ua := r.UserAgent(); ua != "" {
		sess.UserAgent = &ua
	}
	if host := r.RemoteAddr; host != "" {
		sess.IPAddress = &host
	}

	if err := m.sessions.Create(ctx, sess); err != nil {
		return err
	}

	encoded, err := m.codec.Encode(m.cookieName, map[string]any{"sid": sess.ID})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the cookie and deletes the backing session if present.
func (m *SessionManager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if sid, ok := m.sessionID(r); ok {
		_ = m.sessions.Delete(ctx, sid)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    m.cookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		Secure:  m.secure,
	})
}

// Current resolves the request's session, returning the account ID it
// belongs to. Expired sessions are treated as absent.
func (m *SessionManager) Current(ctx context.Context, r *http.Request) (*store.Session, bool) {
	sid, ok := m.sessionID(r)
	if !ok {
		return nil, false
	}

	sess, err := m.sessions.GetByID(ctx, sid)
	if err != nil {
		return nil, false
	}
	if sess.ExpiresAt.Before(time.Now()) {
		return nil, false
	}

	_ = m.sessions.TouchLastSeen(ctx, sid)
	return sess, true
}

func (m *SessionManager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}

	var value map[string]any
	if err := m.codec.Decode(m.cookieName, c.Value, &value); err != nil {
		return "", false
	}

	sid, ok := value["sid"].(string)
	if !ok || sid == "" {
		return "", false
	}
	return sid, true
}
