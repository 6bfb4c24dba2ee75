package orchestrator

import (
	"math"
	"math/rand"
	"time"
)

// Policy computes the wait before re-running a job after a transient
// failure. Delays grow geometrically with the attempt number and are
// capped, with jitter so stalled batches don't thunder back in lockstep.
type Policy struct {
	BaseDelay  time.Duration
	Factor     float64
	MaxDelay   time.Duration
	MaxRetries int
}

// delayCeiling bounds the geometric growth when no MaxDelay is set, so
// float overflow can never convert into a negative duration.
const delayCeiling = 24 * time.Hour

// Delay returns the backoff for the given attempt. Attempt 1 is the first
// run, so the first retry (attempt 2) waits roughly BaseDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	exp := attempt - 2
	if exp < 0 {
		exp = 0
	}
	// Cap while still in the float domain: converting an overflowed
	// product to time.Duration would wrap negative.
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = delayCeiling
	}
	raw := float64(p.BaseDelay) * math.Pow(factor, float64(exp))
	d := ceiling
	if raw < float64(ceiling) {
		d = time.Duration(raw)
	}
	// Up to 10% jitter on top of the computed delay.
	jitter := time.Duration(rand.Int63n(int64(d)/10 + 1))
	return d + jitter
}

// Exhausted reports whether a transient failure at the given attempt has
// used up the retry budget: MaxRetries counts the re-runs after the first
// attempt, so a job gets at most MaxRetries+1 runs in total.
func (p Policy) Exhausted(attempt int) bool {
	return attempt > p.MaxRetries
}
