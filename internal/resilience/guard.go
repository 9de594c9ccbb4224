package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Verdict says how a failed call is treated.
type Verdict struct {
	Retry bool // another try may succeed
	Count bool // the failure counts toward opening the breaker
}

// Classifier judges a failed call.
type Classifier func(err error) Verdict

// Guard wraps model calls with retries and one breaker per operation.
type Guard struct {
	policy Policy
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(policy Policy, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		policy:   policy.withDefaults(),
		logger:   logger,
		breakers: map[string]*gobreaker.CircuitBreaker[struct{}]{},
	}
}

// Do runs fn under op's breaker. A nil classifier never retries and counts
// every failure.
func (g *Guard) Do(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	if classify == nil {
		classify = func(error) Verdict { return Verdict{Count: true} }
	}
	if !g.policy.Breaker {
		return g.tries(ctx, op, fn, classify)
	}
	_, err := g.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, g.tries(ctx, op, fn, classify)
	})
	return err
}

func (g *Guard) tries(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	wait := g.policy.Backoff
	var err error
	for try := 1; try <= g.policy.Attempts; try++ {
		if try > 1 {
			g.logger.Warn("retrying model call",
				zap.String("operation", op),
				zap.Int("try", try),
				zap.Duration("after", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return err
			case <-time.After(wait):
			}
			wait *= 2
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(ctx); err == nil || !classify(err).Retry {
			return err
		}
	}
	return err
}

func (g *Guard) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    op,
		Timeout: g.policy.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= g.policy.TripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Count
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("model breaker "+to.String(),
				zap.String("operation", name),
				zap.Stringer("from", from),
			)
		},
	})
	g.breakers[op] = cb
	return cb
}

// BreakerOpen reports whether err came from a breaker rejecting the call.
func BreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
