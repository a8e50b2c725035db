package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrRefreshHashMismatch is returned when the presented refresh token is not
// the current one for its session. The session is deleted when this happens.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRedisUnavailable wraps every transport error from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldData    = "d"
	fieldRefresh = "rh"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRotated  int64 = 1
	rotateStatusMismatch int64 = 2
)

// A mismatch means an older refresh token was replayed, so the whole session
// is revoked. HSET leaves the key TTL untouched.
const rotateRefreshScript = `
local current = redis.call("HGET", KEYS[1], "rh")
if not current then
  return 0
end
if current ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 2
end
redis.call("HSET", KEYS[1], "rh", ARGV[2])
return 1
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed session store. It is safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save writes rec under rec.SessionID, replacing any previous value, and sets
// the key to expire after ttl.
//
//	Performance: 1 MULTI/EXEC with DEL + HSET + PEXPIRE.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	if rec == nil || rec.SessionID == "" {
		return errors.New("session id is empty")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be > 0")
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	key := s.key(rec.SessionID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldData, data, fieldRefresh, hex.EncodeToString(rec.RefreshHash[:]))
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session stored under sessionID.
//
//	Performance: 1 Redis HMGET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	vals, err := s.redis.HMGet(ctx, s.key(sessionID), fieldData, fieldRefresh).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, ErrSessionNotFound
	}

	data, ok1 := vals[0].(string)
	fingerprint, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, ErrCorruptRecord
	}

	rec, err := Decode([]byte(data))
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(fingerprint)
	if err != nil || len(raw) != len(rec.RefreshHash) {
		return nil, ErrCorruptRecord
	}
	copy(rec.RefreshHash[:], raw)
	rec.SessionID = sessionID

	if s.now().Unix() >= rec.ExpiresAt {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RotateRefresh atomically replaces the refresh fingerprint of a session
// when provided matches the stored one.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: a stale fingerprint deletes the session.
func (s *Store) RotateRefresh(ctx context.Context, sessionID string, provided, next [32]byte) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}

	code, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		hex.EncodeToString(provided[:]),
		hex.EncodeToString(next[:]),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrSessionNotFound
	case rotateStatusMismatch:
		return ErrRefreshHashMismatch
	default:
		return fmt.Errorf("%w: unknown refresh script status %d", ErrRedisUnavailable, code)
	}
}

// TTL returns the remaining lifetime of a session key.
func (s *Store) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	d, err := s.redis.PTTL(ctx, s.key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if d < 0 {
		return 0, ErrSessionNotFound
	}
	return d, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
