package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/taskhost/bgrunner/core"
)

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// SnapshotPoller periodically exports runner Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	runnerPending   *prom.GaugeVec
	runnerRunning   *prom.GaugeVec
	runnerCompleted *prom.GaugeVec
	runnerExecuted  *prom.GaugeVec
	runnerFailed    *prom.GaugeVec
	runnerRejected  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	runnerPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "bgrunner",
		Name:      "runner_pending",
		Help:      "Number of pending tasks per runner.",
	}, []string{"runner"})
	runnerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "bgrunner",
		Name:      "runner_running",
		Help:      "Runner pump state (1=running, 0=idle).",
	}, []string{"runner"})
	runnerCompleted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "bgrunner",
		Name:      "runner_completed",
		Help:      "Runner completed state (1=completed, 0=accepting).",
	}, []string{"runner"})
	runnerExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "bgrunner",
		Name:      "runner_executed_total",
		Help:      "Runner executed task count snapshot.",
	}, []string{"runner"})
	runnerFailed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "bgrunner",
		Name:      "runner_failed_total",
		Help:      "Runner failed task count snapshot.",
	}, []string{"runner"})
	runnerRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "bgrunner",
		Name:      "runner_rejected_total",
		Help:      "Runner rejected task count snapshot.",
	}, []string{"runner"})

	var err error
	if runnerPending, err = registerCollector(reg, runnerPending); err != nil {
		return nil, err
	}
	if runnerRunning, err = registerCollector(reg, runnerRunning); err != nil {
		return nil, err
	}
	if runnerCompleted, err = registerCollector(reg, runnerCompleted); err != nil {
		return nil, err
	}
	if runnerExecuted, err = registerCollector(reg, runnerExecuted); err != nil {
		return nil, err
	}
	if runnerFailed, err = registerCollector(reg, runnerFailed); err != nil {
		return nil, err
	}
	if runnerRejected, err = registerCollector(reg, runnerRejected); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:        interval,
		runners:         make(map[string]RunnerSnapshotProvider),
		runnerPending:   runnerPending,
		runnerRunning:   runnerRunning,
		runnerCompleted: runnerCompleted,
		runnerExecuted:  runnerExecuted,
		runnerFailed:    runnerFailed,
		runnerRejected:  runnerRejected,
	}, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	defer p.runnersMu.RUnlock()

	for name, provider := range p.runners {
		stats := provider.Stats()
		p.runnerPending.WithLabelValues(name).Set(float64(stats.Pending))
		if stats.Running {
			p.runnerRunning.WithLabelValues(name).Set(1)
		} else {
			p.runnerRunning.WithLabelValues(name).Set(0)
		}
		if stats.Completed {
			p.runnerCompleted.WithLabelValues(name).Set(1)
		} else {
			p.runnerCompleted.WithLabelValues(name).Set(0)
		}
		p.runnerExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.runnerFailed.WithLabelValues(name).Set(float64(stats.Failed))
		p.runnerRejected.WithLabelValues(name).Set(float64(stats.Rejected))
	}
}
