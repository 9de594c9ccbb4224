package resilience

import "time"

// Policy bounds how hard a model call is retried and when its breaker opens.
type Policy struct {
	Attempts int           // tries per call, the first one included
	Backoff  time.Duration // wait before the second try, doubled after each retry

	Breaker   bool
	TripAfter uint32        // consecutive counted failures that open the breaker
	Cooldown  time.Duration // how long an open breaker rejects before a trial call
}

// DefaultPolicy allows a single retry. Parse and embed calls sit on the path
// of an interactive search.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  2,
		Backoff:   100 * time.Millisecond,
		Breaker:   true,
		TripAfter: 5,
		Cooldown:  30 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = def.Backoff
	}
	if p.TripAfter == 0 {
		p.TripAfter = def.TripAfter
	}
	if p.Cooldown <= 0 {
		p.Cooldown = def.Cooldown
	}
	return p
}
