// Package profile wraps pkg/profile behind an Opt flag value so a CLI
// can expose "-profile cpu|mem|block|goroutine|mutex|trace" without each
// command hand-rolling the switch.
package profile

import "github.com/pkg/profile"

// Profiler is an optionally-active profiling session; Start/Stop are
// always safe to call even when nothing was configured to run.
type Profiler struct {
	starter func(p *profile.Profile)
	stopper func()
}

// Start begins profiling, if this Profiler was configured to do so.
func (p *Profiler) Start() {
	if p.starter != nil {
		p.stopper = profile.Start(p.starter).Stop
	}
}

// Stop ends profiling and flushes the profile to disk.
func (p *Profiler) Stop() {
	if p.stopper != nil {
		p.stopper()
	}
}

// Opt selects which kind of profile to collect.
type Opt string

const (
	None      Opt = "none"
	CPU       Opt = "cpu"
	Memory    Opt = "mem"
	Block     Opt = "block"
	Goroutine Opt = "goroutine"
	Mutex     Opt = "mutex"
	Trace     Opt = "trace"
)

// NewProfiler builds a Profiler for the selected option. An unrecognized
// or empty Opt yields an inert Profiler.
func (o Opt) NewProfiler() Profiler {
	switch o {
	case CPU:
		return Profiler{starter: profile.CPUProfile}
	case Memory:
		return Profiler{starter: profile.MemProfile}
	case Block:
		return Profiler{starter: profile.BlockProfile}
	case Goroutine:
		return Profiler{starter: profile.GoroutineProfile}
	case Mutex:
		return Profiler{starter: profile.MutexProfile}
	case Trace:
		return Profiler{starter: profile.TraceProfile}
	default:
		return Profiler{}
	}
}
