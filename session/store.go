package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshHashMismatch reports that the provided refresh hash did not
// match the stored one. The store has already deleted the session by
// the time this is returned: a mismatch means an old token from the
// lineage was replayed, and the whole family is revoked.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrRefreshSessionNotFound is returned when the rotation target session does not exist.
var ErrRefreshSessionNotFound = errors.New("refresh session not found")

// ErrRefreshSessionExpired is returned when the rotation target session is expired.
var ErrRefreshSessionExpired = errors.New("refresh session expired")

// ErrRefreshSessionCorrupt is returned when the rotation target session blob is invalid.
var ErrRefreshSessionCorrupt = errors.New("refresh session corrupt")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const rotateRefreshScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function parse_session(data)
  local version = string.byte(data, 1)
  if version ~= 1 then
    return nil
  end

  local idx = 2
  local id_len = string.byte(data, idx)
  if not id_len then
    return nil
  end
  idx = idx + 1
  if #data < idx + id_len - 1 then
    return nil
  end
  local identity_id = string.sub(data, idx, idx + id_len - 1)
  idx = idx + id_len

  local org_len = string.byte(data, idx)
  if not org_len then
    return nil
  end
  idx = idx + 1 + org_len

  local role_len = string.byte(data, idx)
  if not role_len then
    return nil
  end
  idx = idx + 1 + role_len

  if #data < idx + 31 then
    return nil
  end
  local refresh_offset = idx
  local refresh_hash = string.sub(data, idx, idx + 31)
  idx = idx + 32

  if #data < idx + 15 then
    return nil
  end
  idx = idx + 8
  local expires_at = read_be64(data, idx)
  if not expires_at then
    return nil
  end

  return {
    identity_id = identity_id,
    refresh_hash = refresh_hash,
    refresh_offset = refresh_offset,
    expires_at = expires_at
  }
end

local session_key = KEYS[1]
local session_id = ARGV[1]
local index_prefix = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local data = redis.call("GET", session_key)
if not data then
  return {0}
end

local parsed = parse_session(data)
if not parsed or not parsed.identity_id then
  return {4}
end

local index_key = index_prefix .. parsed.identity_id

if parsed.expires_at <= now_unix then
  redis.call("DEL", session_key)
  redis.call("SREM", index_key, session_id)
  return {1}
end

if not parsed.refresh_hash or parsed.refresh_hash ~= provided_hash then
  redis.call("DEL", session_key)
  redis.call("SREM", index_key, session_id)
  return {2}
end

local ttl = redis.call("PTTL", session_key)
if ttl <= 0 then
  redis.call("DEL", session_key)
  redis.call("SREM", index_key, session_id)
  return {1}
end

local prefix = string.sub(data, 1, parsed.refresh_offset - 1)
local suffix = string.sub(data, parsed.refresh_offset + 32)
local updated = prefix .. next_hash .. suffix

redis.call("SET", session_key, updated, "PX", ttl)
redis.call("SADD", index_key, session_id)

return {3, updated}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed refresh-session store with atomic
// compare-and-swap rotation. Sessions are keyed by session id; a
// per-identity index set supports logout-all.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a [Store] backed by the given Redis client. prefix
// sets the Redis key namespace. now is the time source for expiry
// checks; nil means wall-clock time.
func NewStore(redis redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if prefix == "" {
		prefix = "ta:sess"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: redis, prefix: prefix, now: now}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) identityKey(identityID string) string {
	return s.prefix + ":idx:" + identityID
}

// Save persists a [Session] with the given TTL and records it in the
// identity's session index.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.identityKey(sess.IdentityID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by id. Missing or expired sessions return
// redis.Nil; expired ones are deleted on the way out.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if s.now().Unix() >= sess.ExpiresAt {
		if err := s.deleteSessionAndIndex(ctx, sess.IdentityID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting a session that
// no longer exists is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.IdentityID, sessionID)
}

// DeleteAllForIdentity removes every session of an identity.
//
// ATOMICITY NOTE: not fully atomic. A session created between the index
// read and the delete pipeline survives this call; it will expire
// naturally or be caught by the next invocation.
func (s *Store) DeleteAllForIdentity(ctx context.Context, identityID string) error {
	indexKey := s.identityKey(identityID)

	sessionIDs, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(sessionKeys) > 0 {
			pipe.Del(ctx, sessionKeys...)
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs returns the tracked session ids for an identity.
// The index may briefly include sessions that have already expired.
func (s *Store) ActiveSessionIDs(ctx context.Context, identityID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// RotateRefreshHash atomically replaces the refresh hash using a Lua
// compare-and-swap. Exactly one of any number of concurrent rotations
// with the same provided hash wins; the losers observe a mismatch.
// A mismatch deletes the session, revoking the entire token family.
func (s *Store) RotateRefreshHash(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	nextHash [32]byte,
) (*Session, error) {
	key := s.key(sessionID)
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{key},
		sessionID,
		s.identityKey(""),
		providedHash[:],
		nextHash[:],
		s.now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotation script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotation script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionNotFound)
	case rotateStatusExpired:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionExpired)
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated session payload", ErrRedisUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated session payload", ErrRedisUnavailable)
		}

		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, decErr
		}
		sess.SessionID = sessionID
		return sess, nil
	case rotateStatusInvalidBlob:
		return nil, errors.Join(ErrRedisUnavailable, ErrRefreshSessionCorrupt)
	default:
		return nil, fmt.Errorf("%w: unknown rotation script status", ErrRedisUnavailable)
	}
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, identityID, sessionID string) error {
	_, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.identityKey(identityID)},
		sessionID,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
