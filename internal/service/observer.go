package service

import "time"

// RetrievalObserver receives retrieval events. *metrics.RetrievalMetrics
// implements it.
type RetrievalObserver interface {
	ObserveSearch(strategy, fallback string)
	ObserveAttempt(strategy, state string, duration time.Duration)
	ObserveCorrection(slot string)
	ObserveError(kind string)
}

type noopObserver struct{}

func (noopObserver) ObserveSearch(string, string)                 {}
func (noopObserver) ObserveAttempt(string, string, time.Duration) {}
func (noopObserver) ObserveCorrection(string)                     {}
func (noopObserver) ObserveError(string)                          {}

func observerOrNoop(o RetrievalObserver) RetrievalObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
