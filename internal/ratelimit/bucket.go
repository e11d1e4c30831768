package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// refillScript keeps {tokens, ts} in a hash and refills continuously from the
// Redis clock so every replica agrees on time. Tokens are returned as a string
// because Redis truncates Lua numbers to integers.
const refillScript = `
local perSecond = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local ttlMs = tonumber(ARGV[3])

local t = redis.call("TIME")
local nowMs = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local last = tonumber(state[2]) or nowMs

local elapsed = math.max(0, nowMs - last)
tokens = math.min(capacity, tokens + (elapsed / 1000) * perSecond)

local granted = 0
if tokens >= 1 then
  granted = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", nowMs)
redis.call("PEXPIRE", KEYS[1], ttlMs)
return {granted, tostring(tokens), nowMs}
`

var errBadScriptReply = errors.New("ratelimit: unexpected script reply")

// Rule is a refill rate and the bucket capacity.
type Rule struct {
	PerSecond float64
	Capacity  int
}

func (r Rule) validate() error {
	if r.PerSecond <= 0 || r.Capacity <= 0 {
		return fmt.Errorf("ratelimit: invalid rule %+v", r)
	}
	return nil
}

// idleTTL lets an untouched bucket expire after it would have refilled twice.
func (r Rule) idleTTL() time.Duration {
	secs := math.Max(1, math.Ceil(2*float64(r.Capacity)/r.PerSecond))
	return time.Duration(secs) * time.Second
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type bucket struct {
	client *redis.Client
	script *redis.Script
}

func newBucket(client *redis.Client) *bucket {
	if client == nil {
		return nil
	}
	return &bucket{client: client, script: redis.NewScript(refillScript)}
}

func (b *bucket) take(ctx context.Context, key string, rule Rule) (Decision, error) {
	if key == "" {
		return Decision{}, errors.New("ratelimit: empty key")
	}
	if err := rule.validate(); err != nil {
		return Decision{}, err
	}

	reply, err := b.script.Run(ctx, b.client, []string{key},
		rule.PerSecond, rule.Capacity, rule.idleTTL().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	return decide(reply, rule)
}

func decide(reply []any, rule Rule) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, errBadScriptReply
	}
	granted, ok := reply[0].(int64)
	if !ok {
		return Decision{}, errBadScriptReply
	}
	raw, ok := reply[1].(string)
	if !ok {
		return Decision{}, errBadScriptReply
	}
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Decision{}, errBadScriptReply
	}
	nowMs, ok := reply[2].(int64)
	if !ok {
		return Decision{}, errBadScriptReply
	}

	d := Decision{
		Allowed:   granted == 1,
		Limit:     rule.Capacity,
		Remaining: int(math.Floor(tokens)),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration((1 - tokens) / rule.PerSecond * float64(time.Second))
	}
	d.ResetTime = time.UnixMilli(nowMs).Add(d.RetryAfter)
	return d, nil
}
