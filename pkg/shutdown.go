package checkfiledups

import (
	"os"
	"sync"
	"sync/atomic"
)

// ShutdownState is the coordinator's lifecycle position
type ShutdownState int32

const (
	StateRunning ShutdownState = iota
	StateInterruptRequested
	StateFlushing
	StateTerminated
)

func (s ShutdownState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateInterruptRequested:
		return "interrupt-requested"
	case StateFlushing:
		return "flushing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ShutdownCoordinator tracks Running -> InterruptRequested -> Flushing -> Terminated.
// Done is closed on the first interrupt; the pipeline stops taking new work when
// it sees that. The flush function runs at most once, whether the run ends
// normally, after an interrupt, or on a forced exit.
type ShutdownCoordinator struct {
	state atomic.Int32
	done  chan struct{}

	interruptOnce sync.Once
	flushOnce     sync.Once

	mu         sync.Mutex
	flush      func() error
	flushErr   error
	saveFailed atomic.Bool

	// exit terminates the process on ForceExit; replaced in tests
	exit func(int)
}

// NewShutdownCoordinator returns a coordinator in the Running state
func NewShutdownCoordinator() *ShutdownCoordinator {
	return &ShutdownCoordinator{
		done: make(chan struct{}),
		exit: os.Exit,
	}
}

// State returns the current state
func (c *ShutdownCoordinator) State() ShutdownState {
	return ShutdownState(c.state.Load())
}

// Done is closed once an interrupt has been requested
func (c *ShutdownCoordinator) Done() <-chan struct{} {
	return c.done
}

// Interrupted reports whether an interrupt has been requested
func (c *ShutdownCoordinator) Interrupted() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Interrupt requests a graceful stop. It reports whether this call made the
// transition; later calls are no-ops.
func (c *ShutdownCoordinator) Interrupt() bool {
	first := false
	c.interruptOnce.Do(func() {
		first = true
		c.state.CompareAndSwap(int32(StateRunning), int32(StateInterruptRequested))
		if IsDebugEnabled("shutdown") {
			VerboseLog(3, "shutdown: interrupt requested")
		}
		close(c.done)
	})
	return first
}

// SetFlushFunc registers the function that persists state, normally a cache save.
// It must be set before the pipeline starts.
func (c *ShutdownCoordinator) SetFlushFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush = fn
}

// Flush runs the flush function once and returns its error on every call
func (c *ShutdownCoordinator) Flush() error {
	c.flushOnce.Do(func() {
		c.state.Store(int32(StateFlushing))

		c.mu.Lock()
		fn := c.flush
		c.mu.Unlock()

		if fn == nil {
			return
		}
		if err := fn(); err != nil {
			c.saveFailed.Store(true)
			c.mu.Lock()
			c.flushErr = err
			c.mu.Unlock()
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushErr
}

// Finish flushes if that has not happened yet, moves to Terminated and returns the
// exit code: ExitInterrupted after an interrupt, ExitCacheSaveFailed if the flush
// failed on a normal run, ExitOK otherwise.
func (c *ShutdownCoordinator) Finish() int {
	c.Flush()
	c.state.Store(int32(StateTerminated))

	switch {
	case c.Interrupted():
		return ExitInterrupted
	case c.saveFailed.Load():
		return ExitCacheSaveFailed
	default:
		return ExitOK
	}
}

// ForceExit flushes immediately and terminates with ExitInterrupted. It is used
// when a second signal arrives while the pipeline is still draining.
func (c *ShutdownCoordinator) ForceExit() {
	c.Interrupt()
	c.Finish()
	c.exit(ExitInterrupted)
}
