package main

import (
	"syscall"
	"testing"
	"time"

	checkfiledups "github.com/mattkeenan/checkfiledups/pkg"
)

func TestSignalHandlerIgnoresBrokenPipe(t *testing.T) {
	coord := checkfiledups.NewShutdownCoordinator()
	stop := setupSignalHandler(coord)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGPIPE); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if coord.Interrupted() {
		t.Errorf("SIGPIPE must not interrupt the scan, state %s", coord.State())
	}
}
