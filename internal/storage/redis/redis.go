// Package redis allocates order ids from a Redis counter.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/payment-intake/internal/domain/order"
)

// DefaultKey is the counter key used when none is configured.
const DefaultKey = "intake:orders:last_id"

// floorScript raises the counter to ARGV[1] when it is lower and returns the
// resulting value.
var floorScript = goredis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call('SET', KEYS[1], floor)
	return floor
end
return cur
`)

var _ order.IDAllocator = (*Allocator)(nil)

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis URL")
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}

	return client, nil
}

// Allocator hands out order ids with INCR, which is atomic on the server.
type Allocator struct {
	client goredis.UniversalClient
	key    string
}

// NewAllocator returns an Allocator using key, or DefaultKey when empty.
func NewAllocator(client goredis.UniversalClient, key string) *Allocator {
	if key == "" {
		key = DefaultKey
	}
	return &Allocator{client: client, key: key}
}

// NextID increments the counter and returns the new value.
func (a *Allocator) NextID(ctx context.Context) (int64, error) {
	id, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing %s", a.key)
	}
	return id, nil
}

// Floor makes sure the next id is greater than floor, typically the largest
// order id already stored. It never lowers the counter.
func (a *Allocator) Floor(ctx context.Context, floor int64) (int64, error) {
	v, err := floorScript.Run(ctx, a.client, []string{a.key}, floor).Int64()
	if err != nil {
		return 0, errors.Wrapf(err, "flooring %s to %d", a.key, floor)
	}
	return v, nil
}
