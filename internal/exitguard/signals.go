// SPDX-License-Identifier: MPL-2.0

package exitguard

import (
	"context"
	"os"
	"os/signal"

	"github.com/invowk/scriptwrap/pkg/types"
)

// watchSignals cancels the returned context on the first installed signal.
// A second signal forces termination: cleanup runs (once) on the watcher
// goroutine and the original process-exit primitive is called.
func (ic *Interceptor) watchSignals(ctx context.Context) (context.Context, func()) {
	ic.mu.Lock()
	sigs := ic.signals
	ic.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	if len(sigs) == 0 {
		return runCtx, cancel
	}

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, sigs...)
	stopped := make(chan struct{})

	go func() {
		for {
			select {
			case <-stopped:
				return
			case sig := <-ch:
				if ic.storeSignal(sig) {
					ic.logger.Info("termination signal received, stopping body", "signal", sig.String())
					cancel()
					continue
				}
				ic.forceExit(sig)
				return
			}
		}
	}()

	return runCtx, func() {
		signal.Stop(ch)
		close(stopped)
		cancel()
	}
}

// storeSignal records the first signal and reports whether sig was it.
func (ic *Interceptor) storeSignal(sig os.Signal) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.pendingSignal != nil {
		return false
	}
	ic.pendingSignal = sig
	return true
}

func (ic *Interceptor) caughtSignal() os.Signal {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.pendingSignal
}

func (ic *Interceptor) forceExit(sig os.Signal) {
	ic.logger.Warn("second termination signal, forcing exit", "signal", sig.String())
	code := types.SignalExitCode(sig)
	if !ic.Fired() {
		ic.note("Exiting from signal " + sig.String())
	}
	ic.record(Event{Kind: UncaughtTermination, Code: code, Signal: sig})
	ic.fire()
	ic.Exit(code)
}
