// Package chain builds the linear stack of processes.
//
// Go cannot fork(2) mid-runtime, so spawning a chain member means
// re-executing the current binary with the child's depth carried in the
// environment. Each process therefore runs only its own step of the loop:
// spawn a child one position deeper and wait for it, or, at depth 1, suspend
// until a signal arrives. The re-executed child picks the loop up from its
// inherited depth, so the chain as a whole behaves like the classic
// fork-in-a-loop stack.
package chain

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"go.olrik.dev/sigstack/internal/diag"
)

// Env vars carried into a spawned chain member. RunEnv marks the process as
// a re-executed child (main injects the run command when it is set);
// DepthEnv is its chain position.
const (
	RunEnv   = "SIGSTACK_CHAIN_RUN"
	DepthEnv = "SIGSTACK_DEPTH"
)

// Pauser is the terminal member's suspension point, satisfied by the signal
// relay.
type Pauser interface {
	Pause()
}

// Builder runs one process's step of chain construction.
type Builder struct {
	depth  int
	diag   *diag.Writer
	pauser Pauser
	log    *slog.Logger

	// argv (after the executable path) for spawned children. Overridden in
	// tests to re-enter the test binary.
	execArgs []string
	// extra environment entries for spawned children, e.g. the configured
	// fatal signal name.
	extraEnv []string

	spawnFn func(childDepth int) (int, error)
	waitFn  func(pid int) error
}

// NewBuilder returns a Builder for a chain member at the given depth. The
// pauser is blocked on by the terminal member until a signal arrives.
func NewBuilder(depth int, d *diag.Writer, pauser Pauser) *Builder {
	b := &Builder{
		depth:    depth,
		diag:     d,
		pauser:   pauser,
		log:      slog.Default(),
		execArgs: []string{"run"},
	}
	b.spawnFn = b.spawn
	b.waitFn = b.await
	return b
}

// SetChildEnv adds environment entries to every spawned child, on top of the
// inherited environment and the chain markers.
func (b *Builder) SetChildEnv(env ...string) {
	b.extraEnv = append(b.extraEnv, env...)
}

// Run executes this process's part of the chain protocol and returns once
// the process is ready to exit: after its child has terminated, or, for the
// terminal member, after a signal has woken it. A non-nil error means the
// chain could not be built or awaited and the process must exit with a
// failure status. The caller is responsible for routing both outcomes
// through the relay's exit path.
func (b *Builder) Run() error {
	b.diag.Event("started")

	if b.depth > 1 {
		childPid, err := b.spawnFn(b.depth - 1)
		if err != nil {
			return fmt.Errorf("spawning chain member %d: %w", b.depth-1, err)
		}
		b.log.Debug("spawned chain member", "depth", b.depth-1, "pid", childPid)

		b.diag.Event("waiting")
		if err := b.waitFn(childPid); err != nil {
			return fmt.Errorf("awaiting chain member %d: %w", b.depth-1, err)
		}
		b.log.Debug("chain member terminated", "pid", childPid)
		return nil
	}

	// Terminal member: no child to wait on, suspend until a signal arrives.
	b.diag.Event("last child awaiting signal")
	b.pauser.Pause()
	return nil
}

// spawn re-executes the current binary as the chain member at childDepth.
// The child shares this process's stdio and stays in the ambient process
// group; group-targeted signal delivery reaching the whole chain (or not)
// is exactly what the chain exists to demonstrate.
func (b *Builder) spawn(childDepth int) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolving executable path: %w", err)
	}

	cmd := exec.Command(exe, b.execArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		RunEnv+"=1",
		fmt.Sprintf("%s=%d", DepthEnv, childDepth),
	)
	cmd.Env = append(cmd.Env, b.extraEnv...)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting child process: %w", err)
	}
	return cmd.Process.Pid, nil
}

// await blocks until the child with the given pid terminates. Interruption
// by signal delivery is expected here, not an error, so EINTR retries the
// wait; any other wait failure is fatal to the caller. The child's own exit
// status is deliberately ignored: chain members unwind on termination, not
// on success.
func (b *Builder) await(pid int) error {
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &status, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("wait4: %w", err)
		}
		if wpid == pid {
			if status.Signaled() {
				b.log.Debug("child killed by signal", "pid", pid, "signal", status.Signal())
			}
			return nil
		}
	}
}
