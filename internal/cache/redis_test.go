package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSeatMapsSharedThroughRedis(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	a := NewSeatMaps(rdb, time.Minute, "test", quietLogger())
	b := NewSeatMaps(rdb, time.Minute, "test", quietLogger())

	m := model.SeatMap{RouteID: 3, Capacity: 2, Occupied: []uint32{1}, Available: []uint32{2}}
	v, ok := a.Version(ctx, 3)
	if !ok || v != 0 {
		t.Fatalf("Version = %d, %v; want 0, true", v, ok)
	}
	a.Set(ctx, m, v)
	if !mr.Exists("test:route:3") {
		t.Fatal("seat map not written to redis")
	}

	got, ok := b.Get(ctx, 3)
	if !ok {
		t.Fatal("second instance missed redis entry")
	}
	if got.Capacity != 2 || len(got.Available) != 1 || got.Available[0] != 2 {
		t.Fatalf("Get = %+v", got)
	}

	b.Invalidate(ctx, 3)
	if mr.Exists("test:route:3") {
		t.Fatal("redis entry survived invalidate")
	}
	if _, ok := a.Get(ctx, 3); ok {
		t.Fatal("first instance still serves the invalidated map")
	}
}

func TestSeatMapsDropStaleWriteRedis(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	c := NewSeatMaps(rdb, time.Minute, "test", quietLogger())

	v, _ := c.Version(ctx, 5)
	// a mutation commits while the reader is still computing its map
	c.Invalidate(ctx, 5)
	c.Set(ctx, model.SeatMap{RouteID: 5, Capacity: 1, Available: []uint32{1}}, v)
	if mr.Exists("test:route:5") {
		t.Fatal("stale map written after invalidate")
	}

	v2, ok := c.Version(ctx, 5)
	if !ok || v2 != v+1 {
		t.Fatalf("Version = %d, %v; want %d, true", v2, ok, v+1)
	}
	c.Set(ctx, model.SeatMap{RouteID: 5, Capacity: 1, Occupied: []uint32{1}}, v2)
	if _, ok := c.Get(ctx, 5); !ok {
		t.Fatal("fresh map not cached")
	}
	if ttl := mr.TTL("test:route:5"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("TTL = %v, want within 1m", ttl)
	}
}

func TestSeatMapsWithoutRedis(t *testing.T) {
	ctx := context.Background()
	c := NewSeatMaps(nil, time.Minute, "", nil)
	v, _ := c.Version(ctx, 1)
	c.Set(ctx, model.SeatMap{RouteID: 1, Capacity: 1}, v)
	if _, ok := c.Get(ctx, 1); !ok {
		t.Fatal("local entry missing")
	}
	c.Invalidate(ctx, 1)
	if _, ok := c.Get(ctx, 1); ok {
		t.Fatal("entry survived invalidate")
	}

	c.Set(ctx, model.SeatMap{RouteID: 1, Capacity: 1}, v)
	if _, ok := c.Get(ctx, 1); ok {
		t.Fatal("map computed before invalidate was cached")
	}
}

func TestDeduperRedis(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	d := NewDeduper(rdb, time.Hour, "wh")

	seen, err := d.Seen(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("Seen = %v, %v; want false, nil", seen, err)
	}
	// checking alone must not record the ID
	if seen, _ = d.Seen(ctx, "evt_1"); seen {
		t.Fatal("Seen recorded the id")
	}

	if err := d.Remember(ctx, "evt_1"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if seen, err = d.Seen(ctx, "evt_1"); err != nil || !seen {
		t.Fatalf("Seen after Remember = %v, %v; want true, nil", seen, err)
	}
	if ttl := mr.TTL("wh:evt_1"); ttl != time.Hour {
		t.Fatalf("TTL = %v, want 1h", ttl)
	}
}

func TestDeduperRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	d := NewDeduper(rdb, time.Hour, "wh")
	seen, err := d.Seen(context.Background(), "evt_1")
	if err == nil || seen {
		t.Fatalf("Seen = %v, %v; want false and an error", seen, err)
	}
}

func TestDeduperLocalFallback(t *testing.T) {
	ctx := context.Background()
	d := NewDeduper(nil, time.Hour, "")
	if ok, _ := d.Seen(ctx, "x"); ok {
		t.Fatal("unknown id reported as seen")
	}
	_ = d.Remember(ctx, "x")
	if ok, _ := d.Seen(ctx, "x"); !ok {
		t.Fatal("remembered id not seen")
	}
}
