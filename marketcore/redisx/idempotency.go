package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Idempotency guard per pipeline: idem:{pipeline}:{key} -> result id
	keyIdempotency = "idem:%s:%s"

	inFlightMarker = "__in_flight__"
)

var TTLIdempotency = 24 * time.Hour

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Idempotency suppresses duplicate submissions carrying the same client key.
// It is probabilistic protection against double-clicks, not a correctness
// mechanism: the transition guard inside the mutation stays the authority.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

// Begin claims the key. It returns false when another submission already
// holds it, along with any recorded result id from the first run. Redis being
// unavailable fails open: the pipeline proceeds.
func (i *Idempotency) Begin(ctx context.Context, pipeline, key string) (proceed bool, priorResult string, err error) {
	if i == nil || i.rdb == nil || key == "" {
		return true, "", nil
	}

	redisKey := fmt.Sprintf(keyIdempotency, pipeline, key)
	ok, err := i.rdb.SetNX(ctx, redisKey, inFlightMarker, TTLIdempotency).Result()
	if err != nil {
		return true, "", err
	}
	if ok {
		return true, "", nil
	}

	prior, err := i.rdb.Get(ctx, redisKey).Result()
	if err != nil || prior == inFlightMarker {
		return false, "", nil
	}
	return false, prior, nil
}

// Complete records the committed result id under the key so a duplicate can
// be answered with the original outcome.
func (i *Idempotency) Complete(ctx context.Context, pipeline, key, resultID string) error {
	if i == nil || i.rdb == nil || key == "" {
		return nil
	}

	redisKey := fmt.Sprintf(keyIdempotency, pipeline, key)
	return i.rdb.Set(ctx, redisKey, resultID, TTLIdempotency).Err()
}

// Release frees the key after a failed run so the client can retry.
func (i *Idempotency) Release(ctx context.Context, pipeline, key string) {
	if i == nil || i.rdb == nil || key == "" {
		return
	}

	redisKey := fmt.Sprintf(keyIdempotency, pipeline, key)
	_ = i.rdb.Del(ctx, redisKey).Err()
}
