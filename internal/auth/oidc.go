package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/runsheetapp/runsheet/internal/config"
	"github.com/runsheetapp/runsheet/internal/store"
)

const stateCookieName = "runsheet_oauth_state"

// Service handles OIDC login and the middleware protecting the API.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	sessions *SessionManager

	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

// NewService discovers the OIDC provider and prepares the OAuth2 config.
func NewService(ctx context.Context, cfg *config.Config, st *store.Store, sessions *SessionManager) (*Service, error) {
	issuer := cfg.OAuth.IssuerURL
	if issuer == "" {
		issuer = strings.TrimSuffix(cfg.OAuth.DiscoveryURL, "/.well-known/openid-configuration")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  strings.TrimSuffix(cfg.BaseURL, "/") + cfg.OAuth.RedirectPath,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &Service{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID}),
		oauth:    oauthCfg,
	}, nil
}

// BeginOAuth redirects the browser to the provider's authorization endpoint.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken(16)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   s.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleOAuthCallback exchanges the code, verifies the ID token, upserts the
// account and starts a session.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0)})

	token, err := s.oauth.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		log.Printf("[ERROR] oauth exchange failed: %v", err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "missing id_token", http.StatusUnauthorized)
		return
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		log.Printf("[ERROR] id token verification failed: %v", err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
		http.Error(w, "email claim required", http.StatusUnauthorized)
		return
	}

	account, err := s.store.Accounts.UpsertOIDCAccount(ctx, idToken.Subject, claims.Email)
	if err != nil {
		log.Printf("[ERROR] account upsert failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.sessions.Issue(ctx, w, r, account.ID); err != nil {
		log.Printf("[ERROR] session issue failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout clears the session and its cookie.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(r.Context(), w, r)
	w.WriteHeader(http.StatusNoContent)
}

// RequireAuth admits requests carrying either a valid session cookie or a
// bearer API token, and attaches the account to the context.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw := bearerToken(r); raw != "" {
			account, err := s.ValidateAPIToken(ctx, raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(ctx, account)))
			return
		}

		if sess, ok := s.sessions.Current(ctx, r); ok {
			account, err := s.store.Accounts.GetByID(ctx, sess.AccountID)
			if err == nil {
				ctx = WithAccount(ctx, account)
				ctx = WithSessionID(ctx, sess.ID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		http.Error(w, "authentication required", http.StatusUnauthorized)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("entropy unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
