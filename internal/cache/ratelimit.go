package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyBucketPrefix = "rl:key:"
	ipBucketPrefix  = "rl:ip:"
)

// Limit is a token bucket: Burst tokens, refilled at PerSecond.
type Limit struct {
	PerSecond float64
	Burst     int
}

// PerMinute builds the limit of an API key tier. A zero rate is unlimited.
func PerMinute(requests, burst int) Limit {
	return Limit{PerSecond: float64(requests) / 60, Burst: burst}
}

// Unlimited reports whether the limit never rejects.
func (l Limit) Unlimited() bool {
	return l.PerSecond <= 0 || l.Burst <= 0
}

// idleTTL is how long an untouched bucket lives: the time to refill it
// completely, plus a second. After that it is indistinguishable from a new one.
func (l Limit) idleTTL() time.Duration {
	refill := time.Duration(float64(l.Burst) / l.PerSecond * float64(time.Second))
	return refill.Truncate(time.Second) + 2*time.Second
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// takeToken refills the bucket by the elapsed milliseconds and takes one
// token. It replies {allowed, retry_after_ms, remaining_tokens}.
var takeToken = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1]) / 1000
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'at')
local tokens = tonumber(state[1]) or burst
local at = tonumber(state[2]) or now
if now > at then
  tokens = math.min(burst, tokens + (now - at) * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'at', now)
redis.call('PEXPIRE', key, ttl)
return {allowed, wait, math.floor(tokens)}
`)

// AllowKey takes a token from an API key's bucket.
func (c *Cache) AllowKey(ctx context.Context, keyID string, l Limit) (Decision, error) {
	return c.take(ctx, keyBucketPrefix+keyID, l)
}

// AllowIP takes a token from a client address's bucket. Addresses are stored
// hashed.
func (c *Cache) AllowIP(ctx context.Context, ip string, l Limit) (Decision, error) {
	return c.take(ctx, ipBucketPrefix+hashIP(ip), l)
}

// take returns the Redis error to the caller, which decides whether to fail
// open.
func (c *Cache) take(ctx context.Context, key string, l Limit) (Decision, error) {
	now := time.Now()
	if l.Unlimited() {
		return Decision{Allowed: true, Remaining: int64(l.Burst), ResetAt: now}, nil
	}

	reply, err := takeToken.Run(ctx, c.rdb, []string{key},
		l.PerSecond, l.Burst, now.UnixMilli(), l.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("cache: rate limit %s: %w", key, err)
	}
	return decide(reply, l, now)
}

// decide interprets the script reply. ResetAt is when the bucket is full
// again if no further requests arrive.
func decide(reply []int64, l Limit, now time.Time) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("cache: rate limit reply has %d fields", len(reply))
	}
	d := Decision{
		Allowed:    reply[0] == 1,
		RetryAfter: time.Duration(reply[1]) * time.Millisecond,
		Remaining:  reply[2],
	}
	missing := float64(int64(l.Burst) - d.Remaining)
	d.ResetAt = now.Add(time.Duration(math.Ceil(missing/l.PerSecond)) * time.Second)
	return d, nil
}

// hashIP keeps the first 8 bytes of the address's SHA-256.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
