package config

import "time"

// RateLimitConfig configures the Redis token bucket.  Capacity is the
// burst size; RefillTokens are added every RefillInterval.  Booking
// creation gets its own, usually tighter, bucket.
type RateLimitConfig struct {
    Enabled         bool
    Capacity        int
    RefillTokens    int
    RefillInterval  time.Duration
    BookingCapacity int
    TTL             time.Duration
    KeyStrategy     string // "ip", "ip_route" or "ip_user_route"
    Prefix          string
    Debug           bool
}

func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:         envBool("RATE_LIMIT_ENABLED", true),
        Capacity:        envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:    envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval:  envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        BookingCapacity: envInt("RATE_LIMIT_BOOKING_CAPACITY", 10),
        TTL:             envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:     envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
        Prefix:          envStr("RATE_LIMIT_PREFIX", "park:rl"),
        Debug:           envBool("RATE_LIMIT_DEBUG", false),
    }
    return c.normalized()
}

func (c RateLimitConfig) normalized() RateLimitConfig {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.BookingCapacity < 1 {
        c.BookingCapacity = c.Capacity
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    // keys must outlive a full refill of the bucket
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
    return c
}
