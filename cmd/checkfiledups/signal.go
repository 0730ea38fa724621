package main

import (
	"os"
	"os/signal"
	"syscall"

	checkfiledups "github.com/mattkeenan/checkfiledups/pkg"
)

// setupSignalHandler routes SIGINT and SIGTERM to the coordinator. The first
// signal requests a graceful stop; a second one flushes and exits at once.
// SIGPIPE is caught and dropped so a closed stdout surfaces as EPIPE on the
// report write instead of killing the process before the cache is saved.
// The returned function stops signal delivery.
func setupSignalHandler(coord *checkfiledups.ShutdownCoordinator) func() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigChan:
				log := checkfiledups.Logger().WithField("signal", sig.String())
				if sig == syscall.SIGPIPE {
					log.Debug("Ignoring broken pipe")
					continue
				}
				if coord.Interrupt() {
					log.Warn("Received signal, finishing in-flight files (repeat to exit now)")
					continue
				}
				log.Warn("Received second signal, saving cache and exiting")
				coord.ForceExit()
				return
			case <-stop:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(stop)
	}
}
