package app

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"gones6502/internal/bus"
	"gones6502/internal/cpu"
)

// Emulator owns the bus and steps it on a single worker goroutine. Other
// goroutines see the system only through published CPUState snapshots and
// through requests that run on the worker between batches.
type Emulator struct {
	bus    *bus.Bus
	config *Config

	stepsPerTick uint64
	maxSteps     uint64 // 0 for no limit
	executed     uint64 // Instructions run by this worker, across resets

	snapshot atomic.Pointer[bus.CPUState]
	running  atomic.Bool
	paused   atomic.Bool

	requests chan request
	wake     chan struct{}
	done     chan struct{}

	startTime time.Time
	debug     bool
}

type request struct {
	fn    func(*bus.Bus) error
	reply chan error
}

// EmulatorStats reports worker throughput
type EmulatorStats struct {
	Steps          uint64
	Uptime         time.Duration
	StepsPerSecond float64
	Paused         bool
	State          cpu.State
}

// NewEmulator creates a worker for b. Nothing runs until Run is called.
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	e := &Emulator{
		bus:          b,
		config:       config,
		stepsPerTick: config.Emulation.StepsPerTick,
		maxSteps:     config.Emulation.MaxSteps,
		requests:     make(chan request),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		startTime:    time.Now(),
		debug:        config.Debug.EnableLogging,
	}
	if e.stepsPerTick == 0 {
		e.stepsPerTick = 1000
	}
	e.publish()
	return e
}

// Run steps the system until ctx is done or an instruction fails. Halting
// does not end Run: the worker keeps serving requests so a state can be
// loaded or the system reset. Cancellation returns nil.
func (e *Emulator) Run(ctx context.Context) error {
	e.running.Store(true)
	defer func() {
		e.publish()
		e.running.Store(false)
		close(e.done)
	}()

	for {
		if e.paused.Load() || e.bus.CPU.State() == cpu.Halted {
			select {
			case <-ctx.Done():
				return nil
			case r := <-e.requests:
				e.serve(r)
			case <-e.wake:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case r := <-e.requests:
			e.serve(r)
			continue
		default:
		}

		batch := e.stepsPerTick
		if e.maxSteps > 0 {
			if e.executed >= e.maxSteps {
				if e.debug {
					log.Printf("[APP] step limit %d reached", e.maxSteps)
				}
				e.bus.CPU.Stop()
				batch = 1
			} else if remaining := e.maxSteps - e.executed; remaining < batch {
				batch = remaining
			}
		}

		n, err := e.bus.RunFor(ctx, batch)
		e.executed += n
		e.publish()

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// serve runs a request on the worker and publishes the result
func (e *Emulator) serve(r request) {
	r.reply <- r.fn(e.bus)
	e.publish()
}

// Do runs fn against the bus on the worker goroutine and waits for it. Once
// the worker has exited, fn runs on the caller's goroutine instead. Before
// Run starts, Do blocks until ctx is done.
func (e *Emulator) Do(ctx context.Context, fn func(*bus.Bus) error) error {
	r := request{fn: fn, reply: make(chan error, 1)}
	select {
	case e.requests <- r:
		return <-r.reply
	case <-e.done:
		err := fn(e.bus)
		e.publish()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish stores a fresh snapshot for readers
func (e *Emulator) publish() {
	state := e.bus.GetCPUState()
	e.snapshot.Store(&state)
}

// State returns the latest published snapshot. Safe from any goroutine.
func (e *Emulator) State() *bus.CPUState {
	return e.snapshot.Load()
}

// Done is closed when Run returns
func (e *Emulator) Done() <-chan struct{} {
	return e.done
}

// Reset resets the system on the worker and clears the step limit count
func (e *Emulator) Reset(ctx context.Context) error {
	return e.Do(ctx, func(b *bus.Bus) error {
		b.Reset()
		e.executed = 0
		return nil
	})
}

// Stop asks the CPU to halt at the next instruction boundary
func (e *Emulator) Stop() {
	e.bus.CPU.Stop()
}

// Pause suspends stepping after the current batch
func (e *Emulator) Pause() {
	e.paused.Store(true)
}

// Resume continues a paused worker
func (e *Emulator) Resume() {
	e.paused.Store(false)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// TogglePause toggles between paused and running
func (e *Emulator) TogglePause() {
	if e.paused.Load() {
		e.Resume()
	} else {
		e.Pause()
	}
}

// IsPaused reports whether the worker is paused
func (e *Emulator) IsPaused() bool {
	return e.paused.Load()
}

// IsRunning reports whether the worker goroutine is active
func (e *Emulator) IsRunning() bool {
	return e.running.Load()
}

// GetPerformanceStats returns throughput figures from the latest snapshot
func (e *Emulator) GetPerformanceStats() EmulatorStats {
	s := e.State()
	stats := EmulatorStats{
		Steps:  s.Steps,
		Paused: e.paused.Load(),
		State:  s.State,
	}
	stats.Uptime = time.Since(e.startTime)
	if secs := stats.Uptime.Seconds(); secs > 0 {
		stats.StepsPerSecond = float64(s.Steps) / secs
	}
	return stats
}
