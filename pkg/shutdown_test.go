package checkfiledups

import (
	"errors"
	"sync"
	"testing"
)

func TestShutdownCoordinatorNormalRun(t *testing.T) {
	coord := NewShutdownCoordinator()
	if coord.State() != StateRunning {
		t.Fatalf("initial state = %s", coord.State())
	}

	flushes := 0
	coord.SetFlushFunc(func() error {
		flushes++
		if coord.State() != StateFlushing {
			t.Errorf("state during flush = %s", coord.State())
		}
		return nil
	})

	if code := coord.Finish(); code != ExitOK {
		t.Errorf("Finish() = %d, expected %d", code, ExitOK)
	}
	if coord.State() != StateTerminated {
		t.Errorf("final state = %s", coord.State())
	}
	coord.Finish()
	if flushes != 1 {
		t.Errorf("flush ran %d times, expected 1", flushes)
	}
}

func TestShutdownCoordinatorInterrupt(t *testing.T) {
	coord := NewShutdownCoordinator()

	select {
	case <-coord.Done():
		t.Fatal("Done closed before interrupt")
	default:
	}

	if !coord.Interrupt() {
		t.Error("first Interrupt() should report the transition")
	}
	if coord.Interrupt() {
		t.Error("second Interrupt() should be a no-op")
	}
	if coord.State() != StateInterruptRequested || !coord.Interrupted() {
		t.Errorf("state after interrupt = %s", coord.State())
	}
	<-coord.Done()

	if code := coord.Finish(); code != ExitInterrupted {
		t.Errorf("Finish() = %d, expected %d", code, ExitInterrupted)
	}
}

func TestShutdownCoordinatorConcurrentInterrupt(t *testing.T) {
	coord := NewShutdownCoordinator()

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if coord.Interrupt() {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("%d callers saw the first interrupt, expected 1", firsts)
	}
}

func TestShutdownCoordinatorExitCodes(t *testing.T) {
	saveErr := errors.New("disk full")

	tests := []struct {
		name      string
		interrupt bool
		flushErr  error
		expected  int
	}{
		{"clean", false, nil, ExitOK},
		{"save failed", false, saveErr, ExitCacheSaveFailed},
		{"interrupted", true, nil, ExitInterrupted},
		{"interrupted and save failed", true, saveErr, ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := NewShutdownCoordinator()
			coord.SetFlushFunc(func() error { return tt.flushErr })
			if tt.interrupt {
				coord.Interrupt()
			}
			if code := coord.Finish(); code != tt.expected {
				t.Errorf("Finish() = %d, expected %d", code, tt.expected)
			}
			if err := coord.Flush(); !errors.Is(err, tt.flushErr) {
				t.Errorf("Flush() = %v, expected %v", err, tt.flushErr)
			}
		})
	}
}

func TestShutdownCoordinatorNoFlushFunc(t *testing.T) {
	coord := NewShutdownCoordinator()
	if err := coord.Flush(); err != nil {
		t.Errorf("Flush() without a flush func = %v", err)
	}
	if code := coord.Finish(); code != ExitOK {
		t.Errorf("Finish() = %d", code)
	}
}

func TestShutdownCoordinatorForceExit(t *testing.T) {
	coord := NewShutdownCoordinator()
	exitCode := -1
	coord.exit = func(code int) { exitCode = code }

	flushes := 0
	coord.SetFlushFunc(func() error {
		flushes++
		return nil
	})

	coord.Interrupt()
	coord.ForceExit()
	// The pipeline finishing afterwards must not flush again
	coord.Finish()

	if exitCode != ExitInterrupted {
		t.Errorf("exit code = %d, expected %d", exitCode, ExitInterrupted)
	}
	if flushes != 1 {
		t.Errorf("flush ran %d times, expected 1", flushes)
	}
	if coord.State() != StateTerminated {
		t.Errorf("state = %s", coord.State())
	}
}

func TestShutdownStateString(t *testing.T) {
	states := map[ShutdownState]string{
		StateRunning:            "running",
		StateInterruptRequested: "interrupt-requested",
		StateFlushing:           "flushing",
		StateTerminated:         "terminated",
		ShutdownState(42):       "unknown",
	}
	for state, expected := range states {
		if state.String() != expected {
			t.Errorf("%d.String() = %q, expected %q", state, state.String(), expected)
		}
	}
}
