package apitoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
)

var (
	// ErrRedisUnavailable wraps Redis transport errors.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidSubject is returned by Issue for an empty subject.
	ErrInvalidSubject = errors.New("api token subject is empty")
)

// Engine is the part of *authcore.Engine the service depends on.
type Engine interface {
	HashOpaqueToken(token string) (string, error)
	VerifyOpaqueToken(token, encoded string) bool
	EmitAudit(ctx context.Context, event authcore.AuditEvent)
	Metrics() *authcore.Metrics
	Logger() *slog.Logger
	Now() time.Time
}

// Record describes an issued token. It never carries the secret or its hash.
type Record struct {
	ID        string    `json:"id"`
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type storedToken struct {
	Record
	Hash string `json:"hash"`
}

// Service stores API tokens in Redis. It is safe for concurrent use.
type Service struct {
	engine      Engine
	redis       redis.UniversalClient
	prefix      string
	defaultTTL  time.Duration
	limiter     *rate.Limiter
	maxFailures int
}

// New builds a Service from the APIToken and RateLimit sections of cfg.
func New(engine Engine, client redis.UniversalClient, cfg authcore.Config) *Service {
	s := &Service{
		engine:     engine,
		redis:      client,
		prefix:     cfg.APIToken.RedisPrefix,
		defaultTTL: cfg.APIToken.DefaultTTL,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = rate.New(client, rate.Config{
			Prefix: cfg.RateLimit.RedisPrefix,
			Window: cfg.RateLimit.Window,
		})
		s.maxFailures = cfg.RateLimit.MaxAPITokenFailures
	}
	return s
}

func (s *Service) key(id string) string {
	return s.prefix + ":" + id
}

func (s *Service) subjectKey(subject string) string {
	return s.prefix + ":sub:" + subject
}

// Issue creates a token for subject and role. The returned string is the
// only copy of the secret. ttl <= 0 selects the configured default.
func (s *Service) Issue(ctx context.Context, subject, role string, ttl time.Duration) (string, Record, error) {
	if subject == "" {
		return "", Record{}, ErrInvalidSubject
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	secret, err := internal.NewAPISecret()
	if err != nil {
		return "", Record{}, err
	}
	hash, err := s.engine.HashOpaqueToken(secret)
	if err != nil {
		return "", Record{}, err
	}

	now := s.engine.Now().UTC().Truncate(time.Second)
	rec := Record{
		ID:        ulid.Make().String(),
		Subject:   subject,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	blob, err := json.Marshal(storedToken{Record: rec, Hash: hash})
	if err != nil {
		return "", Record{}, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.ID), blob, ttl)
		pipe.SAdd(ctx, s.subjectKey(subject), rec.ID)
		return nil
	})
	if err != nil {
		return "", Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s.engine.Metrics().Inc(authcore.MetricAPITokenIssued)
	s.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditAPITokenIssued,
		Subject:   subject,
		Success:   true,
		Metadata:  map[string]string{"token_id": rec.ID},
	})

	return internal.EncodeAPIToken(rec.ID, secret), rec, nil
}

// Authenticate returns the record of a valid, unexpired token. Every failure
// is reported as (Record{}, false).
func (s *Service) Authenticate(ctx context.Context, token string) (Record, bool) {
	ip := authcore.ClientIPFromContext(ctx)
	if err := s.limiter.Check(ctx, rate.ScopeAPIToken, ip, s.maxFailures); err != nil {
		s.engine.Metrics().Inc(authcore.MetricRateLimited)
		s.engine.EmitAudit(ctx, authcore.AuditEvent{
			EventType: authcore.AuditRateLimited,
			Reason:    rate.ScopeAPIToken,
		})
		return Record{}, false
	}

	id, secret, err := internal.DecodeAPIToken(token)
	if err == nil {
		_, err = ulid.ParseStrict(id)
	}
	if err != nil {
		s.burn(secret)
		s.reject(ctx, ip, "")
		return Record{}, false
	}

	stored, err := s.load(ctx, id)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.engine.Logger().Warn("api token lookup failed", slog.String("error", err.Error()))
		}
		s.burn(secret)
		s.reject(ctx, ip, id)
		return Record{}, false
	}

	ok := s.engine.VerifyOpaqueToken(secret, stored.Hash)
	if !ok || !s.engine.Now().Before(stored.ExpiresAt) {
		s.reject(ctx, ip, id)
		return Record{}, false
	}

	s.engine.Metrics().Inc(authcore.MetricAPITokenAuthSuccess)
	return stored.Record, true
}

// Revoke deletes a token. Revoking an unknown id is not an error.
func (s *Service) Revoke(ctx context.Context, id string) error {
	stored, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.subjectKey(stored.Subject), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s.engine.Metrics().Inc(authcore.MetricAPITokenRevoked)
	s.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditAPITokenRevoked,
		Subject:   stored.Subject,
		Success:   true,
		Metadata:  map[string]string{"token_id": id},
	})
	return nil
}

// List returns the live tokens of subject, oldest first. Index entries whose
// record has expired are pruned.
func (s *Service) List(ctx context.Context, subject string) ([]Record, error) {
	ids, err := s.redis.SMembers(ctx, s.subjectKey(subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Record, 0, len(ids))
	var stale []any
	for _, id := range ids {
		stored, err := s.load(ctx, id)
		if errors.Is(err, redis.Nil) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, stored.Record)
	}
	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, s.subjectKey(subject), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	// ULIDs sort by creation time.
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Service) load(ctx context.Context, id string) (storedToken, error) {
	blob, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storedToken{}, redis.Nil
		}
		return storedToken{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var stored storedToken
	if err := json.Unmarshal(blob, &stored); err != nil {
		return storedToken{}, fmt.Errorf("api token record corrupt: %w", err)
	}
	return stored, nil
}

// burn spends one bcrypt comparison on a path that has no stored hash.
func (s *Service) burn(secret string) {
	_ = s.engine.VerifyOpaqueToken(secret, "")
}

func (s *Service) reject(ctx context.Context, ip, id string) {
	if err := s.limiter.Record(ctx, rate.ScopeAPIToken, ip); err != nil {
		s.engine.Logger().Warn("api token failure not counted", slog.String("error", err.Error()))
	}

	s.engine.Metrics().Inc(authcore.MetricAPITokenAuthFailure)

	var metadata map[string]string
	if id != "" {
		metadata = map[string]string{"token_id": id}
	}
	s.engine.EmitAudit(ctx, authcore.AuditEvent{
		EventType: authcore.AuditAPITokenRejected,
		Reason:    authcore.AuditReason(authcore.ErrAPITokenInvalid),
		Metadata:  metadata,
	})
}
