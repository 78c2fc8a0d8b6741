// Package relay implements the per-process catch/defer/re-raise protocol for
// a designated fatal signal.
//
// Every chain member arms one Relay. When the designated signal arrives the
// relay records it and defers all action; when the process later exits
// through Exit, the relay restores the signal's default disposition and
// re-delivers it to the process itself, so the exit status an external
// supervisor observes is the same as for an uninstrumented process. If the
// re-delivery does not terminate the process, the relay forces an immediate
// failure exit.
package relay

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"go.olrik.dev/sigstack/internal/diag"
)

// settleDelay is how long Exit waits for the re-raised signal's default
// disposition to take effect. Signal delivery is asynchronous in Go, so the
// kill can return with the process still executing; without this grace
// period the forced-exit path would fire on every exit.
const settleDelay = 200 * time.Millisecond

// Relay is the per-process signal state machine. Arm moves it to the armed
// state; signal arrival records the pending signal; Exit runs the shutdown
// protocol. A Relay is armed at most once and Exit does not return.
type Relay struct {
	fatal   syscall.Signal
	pending atomic.Int32
	sigCh   chan os.Signal
	wake    chan struct{}
	diag    *diag.Writer

	// seams for tests; production values are set by New
	resetFn func(os.Signal)
	killFn  func(pid int, sig syscall.Signal) error
	exitFn  func(code int)
	settle  time.Duration
}

// New returns an unarmed Relay that treats sig as the designated fatal
// signal and emits its diagnostics through d.
func New(sig syscall.Signal, d *diag.Writer) *Relay {
	return &Relay{
		fatal:   sig,
		sigCh:   make(chan os.Signal, 1),
		wake:    make(chan struct{}, 1),
		diag:    d,
		resetFn: func(sig os.Signal) { signal.Reset(sig) },
		killFn:  unix.Kill,
		exitFn:  os.Exit,
		settle:  settleDelay,
	}
}

// Arm registers the relay for its fatal signal and starts the goroutine that
// drains deliveries. From this point the signal no longer terminates the
// process directly; it is recorded for re-delivery at exit.
func (r *Relay) Arm() {
	signal.Notify(r.sigCh, r.fatal)
	go func() {
		for sig := range r.sigCh {
			r.record(sig)
		}
	}()
}

// Disarm removes the relay's signal registration, falling back to the
// runtime's default handling. Chain members never disarm; they stay armed
// until death. The drain goroutine is left alone: process exit takes care
// of it.
func (r *Relay) Disarm() {
	signal.Stop(r.sigCh)
}

// record notes a delivered signal and wakes any Pause waiter. Only the first
// arrival is recorded; repeats still wake the waiter but are otherwise
// dropped.
func (r *Relay) record(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	if r.pending.CompareAndSwap(0, int32(s)) {
		r.diag.Event("caught signal")
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pending reports the recorded fatal signal, or 0 when none has arrived.
func (r *Relay) Pending() syscall.Signal {
	return syscall.Signal(r.pending.Load())
}

// Pause blocks until a signal has been delivered to this process. This is
// the terminal chain member's suspension point, the pause(2) of the chain:
// signals with a default lethal disposition never reach it because they kill
// the process outright, and the designated fatal signal wakes it through the
// relay.
func (r *Relay) Pause() {
	<-r.wake
}

// Exit is the shutdown hook and the only sanctioned way out of a chain
// member. It emits the "exiting" diagnostic, and if a fatal signal was
// recorded it restores that signal's default disposition and re-delivers it
// so the process dies the way the supervisor expects. A process that
// survives the re-delivery is terminated forcibly with a failure status.
// With no signal pending, the process exits with the given code.
func (r *Relay) Exit(code int) {
	r.diag.Event("exiting")

	sig := syscall.Signal(r.pending.Load())
	if sig == 0 {
		r.exitFn(code)
		return
	}

	r.resetFn(sig)
	if err := r.killFn(os.Getpid(), sig); err != nil {
		slog.Error("re-raise failed", "signal", sig, "error", err)
	}

	// Give the kernel time to act on the now-default disposition.
	time.Sleep(r.settle)

	r.diag.Event("did not die after reraise! calling forced-exit")
	r.exitFn(1)
}

// signalsByName maps the spellable subset of fatal signals a chain can be
// configured with. All have a default disposition of terminate.
var signalsByName = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGALRM": syscall.SIGALRM,
	"SIGTERM": syscall.SIGTERM,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
}

// ParseSignal resolves a signal name like "SIGINT" to the signal itself.
func ParseSignal(name string) (syscall.Signal, error) {
	sig, ok := signalsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown or non-fatal signal %q", name)
	}
	return sig, nil
}
