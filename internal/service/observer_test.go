package service

import (
	"sync"
	"time"
)

type recordingObserver struct {
	mu          sync.Mutex
	searches    []string
	attempts    []string
	corrections []string
	errors      []string
}

func (o *recordingObserver) ObserveSearch(strategy, fallback string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searches = append(o.searches, strategy+"/"+fallback)
}

func (o *recordingObserver) ObserveAttempt(strategy, state string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, strategy+"/"+state)
}

func (o *recordingObserver) ObserveCorrection(slot string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.corrections = append(o.corrections, slot)
}

func (o *recordingObserver) ObserveError(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, kind)
}
