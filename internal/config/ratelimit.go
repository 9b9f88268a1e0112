package config

import (
    "strings"
    "time"
)

// RateLimitConfig parameterizes one Redis token bucket.
type RateLimitConfig struct {
    Enabled        bool
    Scope          string // bucket namespace, e.g. "api" or "webhook"
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // ip | user | route | ip_user | ip_route | user_route | ip_user_route
    Prefix         string
}

// LoadRateLimitConfig reads RATE_LIMIT_* and lets RATE_LIMIT_<SCOPE>_*
// override capacity, refill and key strategy for one scope.  The webhook
// scope defaults to a larger bucket keyed by IP, since payment providers
// burst retries from few addresses.
func LoadRateLimitConfig(scope string) RateLimitConfig {
    up := "RATE_LIMIT_" + strings.ToUpper(scope) + "_"
    c := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Scope:          scope,
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
    }
    if scope == "webhook" {
        c.Capacity = 300
        c.KeyStrategy = "ip"
    }
    c.Enabled = envBool(up+"ENABLED", c.Enabled)
    c.Capacity = envInt(up+"CAPACITY", c.Capacity)
    c.RefillTokens = envInt(up+"REFILL_TOKENS", c.RefillTokens)
    c.RefillInterval = envDur(up+"REFILL_INTERVAL", c.RefillInterval)
    c.KeyStrategy = envStr(up+"KEY_STRATEGY", c.KeyStrategy)
    c.normalize()
    return c
}

func (c *RateLimitConfig) normalize() {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
    c.KeyStrategy = strings.ToLower(c.KeyStrategy)
}
