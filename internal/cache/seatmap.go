package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

// setIfVersion writes the seat map only while the route's version key still
// holds the version the reader started from.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// SeatMaps caches route seat maps.  With a Redis client the maps live only
// in Redis, so an invalidation on one instance is seen by all of them;
// without one they live in process memory.  Every route carries a version
// that Invalidate bumps, and Set discards maps computed under an older
// version.
type SeatMaps struct {
	local  *Local[uint64, model.SeatMap]
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *logrus.Logger

	mu       sync.Mutex
	versions map[uint64]uint64
}

// NewSeatMaps builds a seat map cache.  rdb may be nil.
func NewSeatMaps(rdb *redis.Client, ttl time.Duration, prefix string, log *logrus.Logger) *SeatMaps {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if prefix == "" {
		prefix = "seatmap"
	}
	if log == nil {
		log = logrus.New()
	}
	return &SeatMaps{
		local:    NewLocal[uint64, model.SeatMap](),
		rdb:      rdb,
		ttl:      ttl,
		prefix:   prefix,
		log:      log,
		versions: make(map[uint64]uint64),
	}
}

func (c *SeatMaps) key(routeID uint64) string {
	return fmt.Sprintf("%s:route:%d", c.prefix, routeID)
}

func (c *SeatMaps) versionKey(routeID uint64) string {
	return fmt.Sprintf("%s:route:%d:version", c.prefix, routeID)
}

// Get returns the cached map for the route.
func (c *SeatMaps) Get(ctx context.Context, routeID uint64) (model.SeatMap, bool) {
	if c.rdb == nil {
		return c.local.Get(routeID)
	}
	raw, err := c.rdb.Get(ctx, c.key(routeID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("route_id", routeID).Warn("seat map cache read failed")
		}
		return model.SeatMap{}, false
	}
	var m model.SeatMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.SeatMap{}, false
	}
	return m, true
}

// Version returns the route's current version.  Callers read it before
// computing a map and hand it back to Set.  ok is false when the version
// cannot be read, in which case the map should not be cached.
func (c *SeatMaps) Version(ctx context.Context, routeID uint64) (uint64, bool) {
	if c.rdb == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.versions[routeID], true
	}
	v, err := c.rdb.Get(ctx, c.versionKey(routeID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.log.WithError(err).WithField("route_id", routeID).Warn("seat map version read failed")
		return 0, false
	}
	return v, true
}

// Set stores m unless the route was invalidated after version was read.
func (c *SeatMaps) Set(ctx context.Context, m model.SeatMap, version uint64) {
	if c.rdb == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.versions[m.RouteID] == version {
			c.local.Set(m.RouteID, m, c.ttl)
		}
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	keys := []string{c.versionKey(m.RouteID), c.key(m.RouteID)}
	if err := setIfVersion.Run(ctx, c.rdb, keys, version, raw, c.ttl.Milliseconds()).Err(); err != nil {
		c.log.WithError(err).WithField("route_id", m.RouteID).Warn("seat map cache write failed")
	}
}

// Invalidate bumps the route's version and drops its cached map.
func (c *SeatMaps) Invalidate(ctx context.Context, routeID uint64) {
	if c.rdb == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.versions[routeID]++
		c.local.Del(routeID)
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.versionKey(routeID))
		p.Del(ctx, c.key(routeID))
		return nil
	})
	if err != nil {
		c.log.WithError(err).WithField("route_id", routeID).Warn("seat map cache invalidate failed")
	}
}

// Sweep drops expired process-local entries.
func (c *SeatMaps) Sweep() { c.local.Sweep() }
