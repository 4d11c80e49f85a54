package limiter

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a limiter backed by a shared Redis instance so multiple engine
// nodes enforce one budget. The Lua script makes increment-with-ceiling a
// single atomic step; a plain GET/INCR pair would race under load.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

var consumeScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[2])
	end
	if count > tonumber(ARGV[1]) then
		redis.call("DECR", KEYS[1])
		return 0
	end
	return 1
`)

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client:    client,
		keyPrefix: "engageflow:limiter:",
		// Counters are keyed by local date; 48h covers every timezone
		// offset before the key expires on its own.
		ttl: 48 * time.Hour,
	}
}

func (r *Redis) TryConsume(ctx context.Context, key string, limit int) (bool, error) {
	result, err := consumeScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key},
		limit, int(r.ttl.Seconds()),
	).Result()
	if err != nil {
		return false, err
	}
	return result.(int64) == 1, nil
}
