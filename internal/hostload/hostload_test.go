package hostload

import (
	"context"
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := New(0, nil, nil)
	if s.interval != 10*time.Second {
		t.Fatalf("interval = %v, want 10s default", s.interval)
	}
	if s.cpuThreshold != DefaultCPUPercentThreshold {
		t.Fatalf("cpuThreshold = %v, want %v", s.cpuThreshold, DefaultCPUPercentThreshold)
	}
	if s.memThreshold != DefaultMemoryPercentThreshold {
		t.Fatalf("memThreshold = %v, want %v", s.memThreshold, DefaultMemoryPercentThreshold)
	}
}

func TestLastIsZeroValueBeforeSampling(t *testing.T) {
	s := New(time.Second, nil, nil)
	got := s.Last()
	if !got.SampledAt.IsZero() {
		t.Fatalf("expected zero-value Snapshot before any sample, got %+v", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(time.Hour, nil, nil)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
