package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers handled event IDs for a while so exact replays of an
// inbound event can be answered early.  An ID is only remembered after its
// delivery succeeded, so an in-flight or failed delivery never hides a
// redelivery.  It uses Redis SETNX when available and a
// local map otherwise.
type Deduper struct {
	rdb    *redis.Client
	local  *Local[string, struct{}]
	ttl    time.Duration
	prefix string
}

// NewDeduper returns a deduper keeping IDs for ttl.  rdb may be nil.
func NewDeduper(rdb *redis.Client, ttl time.Duration, prefix string) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "dedupe"
	}
	return &Deduper{rdb: rdb, local: NewLocal[string, struct{}](), ttl: ttl, prefix: prefix}
}

// Seen reports whether id was remembered by an earlier delivery.  On a
// Redis error it reports false, leaving replay handling to the idempotent
// consumer.
func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	if d.rdb == nil {
		_, ok := d.local.Get(id)
		return ok, nil
	}
	n, err := d.rdb.Exists(ctx, d.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remember records id once its delivery has been fully handled.
func (d *Deduper) Remember(ctx context.Context, id string) error {
	if d.rdb == nil {
		d.local.Set(id, struct{}{}, d.ttl)
		return nil
	}
	return d.rdb.Set(ctx, d.key(id), 1, d.ttl).Err()
}

func (d *Deduper) key(id string) string { return d.prefix + ":" + id }

// Sweep drops expired process-local entries.
func (d *Deduper) Sweep() { d.local.Sweep() }
