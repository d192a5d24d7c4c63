package core

// Options control runner behavior. The zero value is a valid configuration:
// the pump starts on the first Add and exits as soon as the queue is
// momentarily empty.
type Options struct {
	// AutoStart launches the pump immediately on construction instead of on
	// the first Add.
	AutoStart bool

	// KeepAlive keeps the pump blocked waiting for more work when the queue
	// is momentarily empty. When false the pump exits on an empty queue and
	// a later Add starts a fresh one.
	KeepAlive bool

	// PreserveRunningTask keeps the last pump handle visible after the pump
	// finishes, so Stopped() still reports the completed pump for
	// diagnostics or awaiting.
	PreserveRunningTask bool

	// Hosted registers the runner with the configured HostRegistry so it
	// receives the two-phase stop notification during host teardown.
	Hosted bool
}

// RunnerConfig holds the runner's collaborators. All fields are optional;
// missing ones are replaced by defaults.
type RunnerConfig struct {
	// Logger receives the runner's leveled, prefixed log lines.
	// Defaults to DefaultLogger.
	Logger Logger

	// Metrics records execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// Host is the external process-lifecycle manager used when
	// Options.Hosted is set.
	Host HostRegistry

	// Owner is the singleton-ownership hook consulted at construction.
	// When registration fails the runner starts pre-completed and accepts
	// no tasks. Defaults to AlwaysOwner.
	Owner SingletonOwner

	// HistoryCapacity bounds the execution-history ring buffer.
	// Defaults to 100.
	HistoryCapacity int
}

// DefaultRunnerConfig returns a config with default collaborators.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Logger:  NewDefaultLogger(),
		Metrics: &NilMetrics{},
		Owner:   AlwaysOwner{},
	}
}

func (c *RunnerConfig) withDefaults() RunnerConfig {
	out := RunnerConfig{}
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Owner == nil {
		out.Owner = AlwaysOwner{}
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultHistoryCapacity
	}
	return out
}
