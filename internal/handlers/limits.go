package handlers

import (
	"sync"
	"time"
)

// Input guards for the event websocket and the REST input endpoint.
const (
	// MaxInputMessageSize caps a single keystroke or paste payload.
	MaxInputMessageSize = 64 * 1024

	MaxTermCols = 500
	MaxTermRows = 200

	// inputRateLimit is the sustained number of inbound websocket messages
	// accepted per second; inputRateBurst allows short pastes above it.
	inputRateLimit = 200
	inputRateBurst = 200
)

// clampTermSize caps a requested size at MaxTermCols x MaxTermRows. ok is
// false when either dimension is not positive.
func clampTermSize(cols, rows int) (int, int, bool) {
	if cols <= 0 || rows <= 0 {
		return 0, 0, false
	}
	if cols > MaxTermCols {
		cols = MaxTermCols
	}
	if rows > MaxTermRows {
		rows = MaxTermRows
	}
	return cols, rows, true
}

// tokenBucket drops inbound messages above a sustained rate.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
}

func newTokenBucket(maxTokens, refillRate int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(maxTokens),
		maxTokens:  float64(maxTokens),
		refillRate: float64(refillRate),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// allow consumes a token if one is available.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.refillRate
	tb.lastRefill = now
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}
