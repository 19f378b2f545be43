// Package ratelimit implements a per-extractor-kind adaptive pacing gate:
// each kind has its own delay and success/failure streak, and a
// process-wide stress multiplier scales every kind's delay under broad
// server pressure.
//
// The pacing primitive is a golang.org/x/time/rate.Limiter per kind; on
// every Acquire its Limit is recomputed from the current delay and stress
// multiplier and pushed via SetLimit, so Acquire paces callers against a
// real token bucket instead of a bare time.Sleep.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Kind identifies the extractor (or transport surface) a rate limiter state
// belongs to, e.g. "automation", "data_extension_soap".
type Kind string

// Config holds the limiter's tunable parameters.
type Config struct {
	MinDelay       time.Duration
	MaxDelay       time.Duration
	InitialDelay   time.Duration
	MaxInFlight    int
	SuccessStreak  int // consecutive successes before delay halves
}

// DefaultConfig is the production parameter set.
func DefaultConfig() Config {
	return Config{
		MinDelay:      50 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		InitialDelay:  100 * time.Millisecond,
		MaxInFlight:   8,
		SuccessStreak: 3,
	}
}

// Outcome classifies the result of a paced call, fed to Release.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

type kindState struct {
	mu                  sync.Mutex
	delay               time.Duration
	consecutiveSuccess  int
	consecutiveFailure  int
	inFlightCh          chan struct{}
	bucket              *rate.Limiter
}

// Limiter paces calls per Kind and tracks a global stress multiplier shared
// across all kinds.
type Limiter struct {
	cfg Config

	mu    sync.Mutex
	kinds map[Kind]*kindState

	stressMu sync.Mutex
	stress   float64 // in [1.0, 16.0]
}

// New constructs a Limiter with the given config (zero-value fields default
// to DefaultConfig's values).
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.SuccessStreak <= 0 {
		cfg.SuccessStreak = def.SuccessStreak
	}
	return &Limiter{cfg: cfg, kinds: make(map[Kind]*kindState), stress: 1.0}
}

func (l *Limiter) stateFor(kind Kind) *kindState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.kinds[kind]
	if !ok {
		st = &kindState{
			delay:      l.cfg.InitialDelay,
			inFlightCh: make(chan struct{}, l.cfg.MaxInFlight),
		}
		st.bucket = rate.NewLimiter(st.effectiveLimit(l.stressSnapshot()), 1)
		l.kinds[kind] = st
	}
	return st
}

func (st *kindState) effectiveLimit(stress float64) rate.Limit {
	delay := time.Duration(float64(st.delay) * stress)
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Limit(1 / delay.Seconds())
}

// Acquire blocks until inFlight < maxInFlight for kind, then paces the
// call by the kind's current delay scaled by the global stress multiplier.
// It returns a release func that must be called exactly once.
func (l *Limiter) Acquire(ctx context.Context, kind Kind) (func(Outcome), error) {
	st := l.stateFor(kind)

	select {
	case st.inFlightCh <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	st.mu.Lock()
	st.bucket.SetLimit(st.effectiveLimit(l.stressSnapshot()))
	st.mu.Unlock()

	if err := st.bucket.Wait(ctx); err != nil {
		<-st.inFlightCh
		return nil, err
	}

	released := false
	return func(outcome Outcome) {
		if released {
			return
		}
		released = true
		l.release(st, outcome)
		<-st.inFlightCh
	}, nil
}

func (l *Limiter) release(st *kindState, outcome Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch outcome {
	case OutcomeSuccess:
		st.consecutiveFailure = 0
		st.consecutiveSuccess++
		if st.consecutiveSuccess >= l.cfg.SuccessStreak {
			st.delay = maxDuration(l.cfg.MinDelay, st.delay/2)
			st.consecutiveSuccess = 0
		}
	case OutcomeFailure:
		st.consecutiveSuccess = 0
		st.consecutiveFailure++
		st.delay = minDuration(l.cfg.MaxDelay, st.delay*2)
	}
}

// Signal reports a global stress ("many 429/5xx across kinds in a window")
// or calm window observation, adjusting the process-wide stress
// multiplier.
func (l *Limiter) Signal(stressed bool) {
	l.stressMu.Lock()
	defer l.stressMu.Unlock()
	if stressed {
		l.stress = math.Min(16, l.stress*2)
	} else {
		l.stress = math.Max(1, l.stress/2)
	}
}

func (l *Limiter) stressSnapshot() float64 {
	l.stressMu.Lock()
	defer l.stressMu.Unlock()
	return l.stress
}

// StressMultiplier reports the current global stress multiplier, for
// statistics.json.
func (l *Limiter) StressMultiplier() float64 {
	return l.stressSnapshot()
}

// Delay reports the current pacing delay for a kind, for statistics.json.
func (l *Limiter) Delay(kind Kind) time.Duration {
	st := l.stateFor(kind)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.delay
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
