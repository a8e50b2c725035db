package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/session"
)

/*
====================================
LOGIN
====================================
*/

func (g *Gateway) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !g.allow(ctx, rate.ScopeLogin, authcore.ClientIPFromContext(ctx), g.rateLimit.MaxLoginAttempts) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	state, err := internal.NewState()
	if err != nil {
		g.internalError(w, "state generation failed", err)
		return
	}
	nonce, err := internal.NewState()
	if err != nil {
		g.internalError(w, "nonce generation failed", err)
		return
	}
	verifier := oauth2.GenerateVerifier()

	// state.nonce.verifier; none of the parts can contain a dot
	http.SetCookie(w, &http.Cookie{
		Name:     oauthCookie,
		Value:    state + "." + nonce + "." + verifier,
		Path:     "/callback",
		MaxAge:   int(g.cfg.StateTTL / time.Second),
		HttpOnly: true,
		Secure:   g.cookies.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	target := g.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.S256ChallengeOption(verifier),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

/*
====================================
CALLBACK
====================================
*/

func (g *Gateway) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	// The flow cookie is single use.
	http.SetCookie(w, g.expiredCookie(oauthCookie, "/callback"))

	if providerErr := query.Get("error"); providerErr != "" {
		g.loginFailed(ctx, w, "provider_error", errors.New(providerErr))
		return
	}

	state, nonce, verifier, ok := g.readFlowCookie(r)
	if !ok || subtle.ConstantTimeCompare([]byte(state), []byte(query.Get("state"))) != 1 {
		g.loginFailed(ctx, w, "state_mismatch", nil)
		return
	}
	code := query.Get("code")
	if code == "" {
		g.loginFailed(ctx, w, "missing_code", nil)
		return
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, g.client)
	tok, err := g.oauth.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		g.loginFailed(ctx, w, "exchange_failed", err)
		return
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		g.loginFailed(ctx, w, "missing_id_token", nil)
		return
	}
	identity, err := g.verifier.Verify(ctx, rawID, nonce)
	if err != nil {
		g.loginFailed(ctx, w, "id_token_invalid", err)
		return
	}

	role := roleFrom(identity, g.cfg.RoleClaim, g.cfg.DefaultRole)
	if role == "" {
		g.loginFailed(ctx, w, "role_missing", nil)
		return
	}

	sid := uuid.NewString()
	pair, err := g.engine.IssuePair(ctx, authcore.Identity{
		Subject:   identity.Subject,
		Role:      role,
		SessionID: sid,
	})
	if err != nil {
		g.loginFailed(ctx, w, "issue_failed", err)
		return
	}

	now := g.engine.Now()
	rec := &session.Record{
		SessionID:   sid,
		Subject:     identity.Subject,
		Role:        role,
		Profile:     identity.Profile,
		RefreshHash: internal.Fingerprint(pair.RefreshToken),
		CreatedAt:   now.Unix(),
		ExpiresAt:   pair.RefreshExpiresAt.Unix(),
	}
	if err := g.store.Save(ctx, rec, g.engine.RefreshTTL()); err != nil {
		g.loginFailed(ctx, w, "session_store_failed", err)
		return
	}

	g.setSessionCookies(w, sid, pair)
	g.engine.Metrics().Inc(authcore.MetricLoginSuccess)
	g.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditLoginSuccess,
		Subject:   identity.Subject,
		SessionID: sid,
		Success:   true,
		Metadata:  map[string]string{"role": role},
	})

	http.Redirect(w, r, g.homeURL(), http.StatusFound)
}

func (g *Gateway) readFlowCookie(r *http.Request) (state, nonce, verifier string, ok bool) {
	c, err := r.Cookie(oauthCookie)
	if err != nil {
		return "", "", "", false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (g *Gateway) loginFailed(ctx context.Context, w http.ResponseWriter, reason string, err error) {
	attrs := []any{slog.String("reason", reason)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.logger.Warn("login failed", attrs...)

	g.engine.Metrics().Inc(authcore.MetricLoginFailure)
	g.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditLoginFailure,
		Reason:    reason,
	})
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

/*
====================================
REFRESH
====================================
*/

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (g *Gateway) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := g.presentedRefreshToken(r)
	claims, ok := g.engine.VerifyRefresh(presented)
	if !ok {
		g.refreshRejected(ctx, w, "", "", nil)
		return
	}
	sub, _ := claims[authcore.ClaimSubject].(string)
	sid, _ := claims[authcore.ClaimSessionID].(string)

	if !g.allow(ctx, rate.ScopeRefresh, sid, g.rateLimit.MaxRefreshAttempts) {
		g.refreshRejected(ctx, w, sub, sid, rate.ErrRateLimited)
		return
	}

	rec, err := g.store.Get(ctx, sid)
	if err != nil {
		g.refreshRejected(ctx, w, sub, sid, err)
		return
	}
	if rec.Subject != sub {
		g.refreshRejected(ctx, w, sub, sid, session.ErrRefreshHashMismatch)
		return
	}

	current := internal.Fingerprint(presented)
	if subtle.ConstantTimeCompare(current[:], rec.RefreshHash[:]) != 1 {
		// An older token of this session was replayed: revoke the session.
		if err := g.store.Delete(ctx, sid); err != nil {
			g.logger.Error("session revoke failed", slog.String("error", err.Error()))
		}
		g.refreshRejected(ctx, w, sub, sid, session.ErrRefreshHashMismatch)
		return
	}

	pair, err := g.engine.IssuePair(ctx, authcore.Identity{
		Subject:   rec.Subject,
		Role:      rec.Role,
		SessionID: sid,
	})
	if err != nil {
		g.refreshRejected(ctx, w, sub, sid, err)
		return
	}
	if err := g.store.RotateRefresh(ctx, sid, current, internal.Fingerprint(pair.RefreshToken)); err != nil {
		g.refreshRejected(ctx, w, sub, sid, err)
		return
	}

	g.setSessionCookies(w, sid, pair)
	g.engine.Metrics().Inc(authcore.MetricRefreshRotated)
	g.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditRefreshSuccess,
		Subject:   sub,
		SessionID: sid,
		Success:   true,
	})
	writeJSON(w, http.StatusOK, pair)
}

func (g *Gateway) presentedRefreshToken(r *http.Request) string {
	var body refreshRequest
	if r.Body != nil {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBody))
		if err := dec.Decode(&body); err == nil && body.RefreshToken != "" {
			return body.RefreshToken
		}
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		return c.Value
	}
	return ""
}

// refreshRejected answers every refresh failure the same way. The reason
// only reaches logs, metrics and audit.
func (g *Gateway) refreshRejected(ctx context.Context, w http.ResponseWriter, sub, sid string, err error) {
	reason := authcore.AuditReason(authcore.ErrRefreshInvalid)
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		reason = "rate_limited"
		g.engine.Metrics().Inc(authcore.MetricRateLimited)
	case errors.Is(err, session.ErrSessionNotFound):
		reason = authcore.AuditReason(authcore.ErrSessionNotFound)
	case errors.Is(err, session.ErrRefreshHashMismatch):
		reason = "refresh_reuse"
	case errors.Is(err, session.ErrRedisUnavailable):
		reason = "session_store_unavailable"
		g.logger.Error("refresh: session store unavailable", slog.String("error", err.Error()))
	}

	g.engine.Metrics().Inc(authcore.MetricRefreshRejected)
	g.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditRefreshInvalid,
		Subject:   sub,
		SessionID: sid,
		Reason:    reason,
	})
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

/*
====================================
LOGOUT
====================================
*/

func (g *Gateway) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var subject, sid string
	if c, err := r.Cookie(g.cookies.CookieName); err == nil && c.Value != "" {
		sid = c.Value
		if rec, err := g.store.Get(ctx, sid); err == nil {
			subject = rec.Subject
		}
		if err := g.store.Delete(ctx, sid); err != nil {
			g.logger.Error("logout: session delete failed", slog.String("error", err.Error()))
		}
	}

	g.clearSessionCookies(w)
	g.engine.Metrics().Inc(authcore.MetricLogout)
	g.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditLogout,
		Subject:   subject,
		SessionID: sid,
		Success:   true,
	})

	http.Redirect(w, r, g.ProviderLogoutURL(), http.StatusFound)
}

// ProviderLogoutURL is where logout sends the browser. It uses the
// advertised end_session_endpoint, else the Auth0 /v2/logout endpoint.
func (g *Gateway) ProviderLogoutURL() string {
	home := g.homeURL()
	if g.meta.EndSessionEndpoint != "" {
		q := url.Values{}
		q.Set("client_id", g.cfg.ClientID)
		q.Set("post_logout_redirect_uri", home)
		return appendQuery(g.meta.EndSessionEndpoint, q)
	}

	q := url.Values{}
	q.Set("returnTo", home)
	q.Set("client_id", g.cfg.ClientID)
	return strings.TrimRight(g.meta.Issuer, "/") + "/v2/logout?" + q.Encode()
}

func appendQuery(endpoint string, q url.Values) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + q.Encode()
}

/*
====================================
INDEX AND ME
====================================
*/

type sessionView struct {
	SessionID string         `json:"sid"`
	Subject   string         `json:"sub"`
	Role      string         `json:"role"`
	Profile   map[string]any `json:"profile,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type indexView struct {
	Authenticated bool         `json:"authenticated"`
	Session       *sessionView `json:"session,omitempty"`
	LoginURL      string       `json:"login_url,omitempty"`
	LogoutURL     string       `json:"logout_url,omitempty"`
}

func (g *Gateway) index(w http.ResponseWriter, r *http.Request) {
	anonymous := indexView{LoginURL: "/login"}

	c, err := r.Cookie(g.cookies.CookieName)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	rec, err := g.store.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			g.logger.Error("index: session lookup failed", slog.String("error", err.Error()))
		}
		writeJSON(w, http.StatusOK, anonymous)
		return
	}

	writeJSON(w, http.StatusOK, indexView{
		Authenticated: true,
		Session: &sessionView{
			SessionID: rec.SessionID,
			Subject:   rec.Subject,
			Role:      rec.Role,
			Profile:   rec.Profile,
			ExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
		},
		LogoutURL: "/logout",
	})
}

func (g *Gateway) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

/*
====================================
HELPERS
====================================
*/

func (g *Gateway) allow(ctx context.Context, scope, id string, max int) bool {
	err := g.limiter.Allow(ctx, scope, id, max)
	if err == nil {
		return true
	}
	if errors.Is(err, rate.ErrRateLimited) {
		if scope == rate.ScopeLogin {
			g.engine.Metrics().Inc(authcore.MetricRateLimited)
			g.engine.EmitAudit(ctx, authcore.AuditEvent{EventType: authcore.AuditRateLimited, Reason: scope})
		}
		return false
	}
	// Limiter storage failures do not lock users out.
	g.logger.Warn("rate limiter unavailable", slog.String("scope", scope), slog.String("error", err.Error()))
	return true
}

func (g *Gateway) setSessionCookies(w http.ResponseWriter, sid string, pair authcore.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookies.CookieName,
		Value:    sid,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   g.cookies.CookieSecure,
		SameSite: g.cookies.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   g.cookies.CookieSecure,
		SameSite: g.cookies.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/refresh",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   g.cookies.CookieSecure,
		SameSite: g.cookies.SameSite,
	})
}

func (g *Gateway) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, g.expiredCookie(g.cookies.CookieName, "/"))
	http.SetCookie(w, g.expiredCookie(accessCookie, "/"))
	http.SetCookie(w, g.expiredCookie(refreshCookie, "/refresh"))
}

func (g *Gateway) expiredCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.cookies.CookieSecure,
		SameSite: g.cookies.SameSite,
	}
}

func (g *Gateway) internalError(w http.ResponseWriter, msg string, err error) {
	g.logger.Error(msg, slog.String("error", err.Error()))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
