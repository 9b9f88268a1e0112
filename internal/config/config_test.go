package config

import (
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/sirupsen/logrus"
)

func TestLoadRateLimitConfigScopes(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "10")
    t.Setenv("RATE_LIMIT_API_KEY_STRATEGY", "USER")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "100ms")

    api := LoadRateLimitConfig("api")
    if api.Capacity != 10 || api.KeyStrategy != "user" {
        t.Fatalf("api = %+v", api)
    }
    if api.TTL != 10*time.Minute {
        t.Fatalf("api TTL = %v, want 10m", api.TTL)
    }

    wh := LoadRateLimitConfig("webhook")
    if wh.Capacity != 300 || wh.KeyStrategy != "ip" {
        t.Fatalf("webhook = %+v", wh)
    }
    t.Setenv("RATE_LIMIT_WEBHOOK_CAPACITY", "0")
    if got := LoadRateLimitConfig("webhook").Capacity; got != 1 {
        t.Fatalf("clamped capacity = %d, want 1", got)
    }
}

func TestLoadBookingConfig(t *testing.T) {
    c := LoadBookingConfig()
    if c.MaxRetries != 3 || c.SeatMapTTL != 10*time.Second {
        t.Fatalf("defaults = %+v", c)
    }
    t.Setenv("BOOKING_MAX_RETRIES", "-2")
    t.Setenv("BOOKING_RETRY_BACKOFF", "5ms")
    c = LoadBookingConfig()
    if c.MaxRetries != 1 || c.RetryBackoff != 5*time.Millisecond {
        t.Fatalf("overrides = %+v", c)
    }
}

func TestNewLogger(t *testing.T) {
    l := Config{Env: "prod", LogLevel: "debug"}.NewLogger()
    if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
        t.Fatalf("formatter = %T, want JSON", l.Formatter)
    }
    if l.Level != logrus.DebugLevel {
        t.Fatalf("level = %v, want debug", l.Level)
    }
    l = Config{Env: "dev", LogLevel: "nonsense"}.NewLogger()
    if l.Level != logrus.InfoLevel {
        t.Fatalf("level = %v, want info", l.Level)
    }
}

func TestRedisConfig(t *testing.T) {
    mr := miniredis.RunT(t)
    t.Setenv("REDIS_ADDR", mr.Addr())
    rc := LoadRedisConfig()
    if rc.Addr != mr.Addr() || !rc.Enabled {
        t.Fatalf("config = %+v", rc)
    }
    client := rc.NewRedisClient()
    if client == nil {
        t.Fatal("client = nil for reachable redis")
    }
    _ = client.Close()

    rc.Enabled = false
    if rc.NewRedisClient() != nil {
        t.Fatal("client returned while disabled")
    }
    rc = RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}
    if rc.NewRedisClient() != nil {
        t.Fatal("client returned for unreachable redis")
    }
}
