// Package hostload periodically samples local CPU and memory pressure and
// feeds it to the rate limiter's global stress multiplier, so the limiter
// backs off under local resource exhaustion in addition to remote 429/5xx
// pressure.
package hostload

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// Thresholds above which the sampler reports "stressed".
const (
	DefaultCPUPercentThreshold    = 85.0
	DefaultMemoryPercentThreshold = 90.0
)

// Snapshot is the most recently sampled host load.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
	SampledAt     time.Time
}

// StressSignal receives a periodic stressed/calm observation, matching the
// shape internal/ratelimit.Limiter.Signal expects.
type StressSignal func(stressed bool)

// Sampler periodically samples host load and reports it to a StressSignal.
type Sampler struct {
	log                    *logger.Logger
	interval               time.Duration
	cpuThreshold           float64
	memThreshold           float64
	signal                 StressSignal

	mu   sync.Mutex
	last Snapshot
}

// New constructs a Sampler. A nil signal is allowed (sampling still updates
// Last()); interval defaults to 10s.
func New(interval time.Duration, signal StressSignal, log *logger.Logger) *Sampler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("hostload")
	}
	if signal == nil {
		signal = func(bool) {}
	}
	return &Sampler{
		log:          log,
		interval:     interval,
		cpuThreshold: DefaultCPUPercentThreshold,
		memThreshold: DefaultMemoryPercentThreshold,
		signal:       signal,
	}
}

// Run samples on every tick until ctx is canceled. Intended to be launched
// in its own goroutine alongside a Runner.Run call.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("cpu sample failed")
		return
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("memory sample failed")
		return
	}

	var cpuPct float64
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}
	snap := Snapshot{CPUPercent: cpuPct, MemoryPercent: vm.UsedPercent, SampledAt: time.Now()}

	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()

	stressed := cpuPct >= s.cpuThreshold || vm.UsedPercent >= s.memThreshold
	s.signal(stressed)
}

// Last returns the most recently recorded Snapshot.
func (s *Sampler) Last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
