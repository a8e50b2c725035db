package authcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
)

// Engine is the token and credential core. It is built once by Builder and
// shared by reference; all methods are safe for concurrent use.
type Engine struct {
	config  Config
	jwt     *jwt.Manager
	hasher  *password.Bcrypt
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current metric values. It is empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the engine's metric set so collaborating packages record
// into the same counters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// AccessTTL returns the configured access token lifetime.
func (e *Engine) AccessTTL() time.Duration { return e.jwt.AccessTTL() }

// RefreshTTL returns the configured refresh token lifetime.
func (e *Engine) RefreshTTL() time.Duration { return e.jwt.RefreshTTL() }

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time { return e.now() }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(id, time.Since(start))
	}
}

/*
====================================
TOKENS
====================================
*/

// SignAccess signs claims as an access token. sub, role and sid are required;
// a missing one is reported as a *jwt.ClaimError matching ErrMissingClaim.
func (e *Engine) SignAccess(claims Claims) (string, error) {
	if e == nil || e.jwt == nil {
		return "", ErrEngineNotReady
	}
	token, err := e.jwt.SignAccess(claims)
	if err != nil {
		e.metricInc(MetricClaimRejected)
		return "", err
	}
	e.metricInc(MetricAccessSigned)
	return token, nil
}

// SignRefresh signs claims as a refresh token. sub and sid are required.
func (e *Engine) SignRefresh(claims Claims) (string, error) {
	if e == nil || e.jwt == nil {
		return "", ErrEngineNotReady
	}
	token, err := e.jwt.SignRefresh(claims)
	if err != nil {
		e.metricInc(MetricClaimRejected)
		return "", err
	}
	e.metricInc(MetricRefreshSigned)
	return token, nil
}

// VerifyAccess returns the claims of a valid access token, or (nil, false).
// The failure reason is deliberately not available.
func (e *Engine) VerifyAccess(token string) (Claims, bool) {
	if e == nil || e.jwt == nil {
		return nil, false
	}
	start := time.Now()
	claims, ok := e.jwt.VerifyAccess(token)
	e.observe(MetricVerifyLatency, start)
	if !ok {
		e.metricInc(MetricAccessVerifyFailure)
		return nil, false
	}
	e.metricInc(MetricAccessVerifySuccess)
	return claims, true
}

// VerifyRefresh returns the claims of a valid refresh token, or (nil, false).
func (e *Engine) VerifyRefresh(token string) (Claims, bool) {
	if e == nil || e.jwt == nil {
		return nil, false
	}
	start := time.Now()
	claims, ok := e.jwt.VerifyRefresh(token)
	e.observe(MetricVerifyLatency, start)
	if !ok {
		e.metricInc(MetricRefreshVerifyFailure)
		return nil, false
	}
	e.metricInc(MetricRefreshVerifySuccess)
	return claims, true
}

// IssuePair signs an access and a refresh token for one login session.
// The refresh token carries only sub, sid and a random jti.
func (e *Engine) IssuePair(ctx context.Context, id Identity) (TokenPair, error) {
	if e == nil || e.jwt == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	sid := id.SessionID
	if sid == "" {
		sid = uuid.NewString()
	}

	claims := make(Claims, len(id.Extra)+3)
	for k, v := range id.Extra {
		switch k {
		case ClaimSubject, ClaimRole, ClaimSessionID, ClaimType, ClaimExpiry:
			continue
		}
		claims[k] = v
	}
	claims[ClaimSubject] = id.Subject
	if id.Role != "" {
		claims[ClaimRole] = id.Role
	}
	claims[ClaimSessionID] = sid

	issuedAt := e.now()
	access, err := e.SignAccess(claims)
	if err != nil {
		e.emitAudit(ctx, AuditClaimRejected, false, id.Subject, sid, err, nil)
		return TokenPair{}, err
	}
	// jti keeps two refresh tokens of one session distinct even when they
	// are minted within the same second.
	refresh, err := e.SignRefresh(Claims{
		ClaimSubject:   id.Subject,
		ClaimSessionID: sid,
		ClaimTokenID:   uuid.NewString(),
	})
	if err != nil {
		e.emitAudit(ctx, AuditClaimRejected, false, id.Subject, sid, err, nil)
		return TokenPair{}, err
	}

	e.emitAudit(ctx, AuditTokenPairIssued, true, id.Subject, sid, nil, func() map[string]string {
		return map[string]string{"algorithm": string(e.jwt.Algorithm())}
	})

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		SessionID:        sid,
		AccessExpiresAt:  issuedAt.Add(e.jwt.AccessTTL()).Truncate(time.Second),
		RefreshExpiresAt: issuedAt.Add(e.jwt.RefreshTTL()).Truncate(time.Second),
	}, nil
}

/*
====================================
CREDENTIALS
====================================
*/

// HashPassword returns a salted bcrypt hash of secret. Two calls on the same
// secret return different hashes.
func (e *Engine) HashPassword(secret string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	if secret == "" {
		return "", ErrEmptySecret
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricPasswordHashed)
	return hash, nil
}

// VerifyPassword reports whether secret matches encoded. Malformed encodings
// return false after the same work as a mismatch.
func (e *Engine) VerifyPassword(secret, encoded string) bool {
	if e == nil || e.hasher == nil {
		return false
	}
	start := time.Now()
	ok := e.hasher.Verify(secret, encoded)
	e.observe(MetricPasswordVerifyLatency, start)
	if !ok {
		e.metricInc(MetricPasswordVerifyFailure)
		return false
	}
	e.metricInc(MetricPasswordVerifySuccess)
	return true
}

// HashOpaqueToken hashes a bearer token for storage with the password
// transform.
func (e *Engine) HashOpaqueToken(token string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	if token == "" {
		return "", ErrEmptySecret
	}
	hash, err := e.hasher.HashOpaqueToken(token)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricOpaqueTokenHashed)
	return hash, nil
}

// VerifyOpaqueToken reports whether token matches a hash produced by
// HashOpaqueToken.
func (e *Engine) VerifyOpaqueToken(token, encoded string) bool {
	if e == nil || e.hasher == nil {
		return false
	}
	return e.hasher.Verify(token, encoded)
}

// PasswordNeedsRehash reports whether encoded was hashed at a lower cost than
// the current configuration, so it should be replaced after the next
// successful VerifyPassword.
func (e *Engine) PasswordNeedsRehash(encoded string) bool {
	if e == nil || e.hasher == nil {
		return false
	}
	return e.hasher.NeedsRehash(encoded)
}
