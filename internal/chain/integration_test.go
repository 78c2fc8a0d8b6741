package chain

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"syscall"
	"testing"
	"time"

	"go.olrik.dev/sigstack/internal/diag"
	"go.olrik.dev/sigstack/internal/relay"
)

// TestChainMemberHelper is not a test: it is the body of a real chain
// member, entered by re-executing the test binary. The driver below spawns
// it as the top of a depth-3 chain; each member re-executes the binary with
// the same -test.run filter, exactly the way the production binary re-enters
// its run command.
func TestChainMemberHelper(t *testing.T) {
	if os.Getenv("SIGSTACK_CHAIN_HELPER") == "" {
		t.Skip("helper process for TestChainBuildsAndUnwinds")
	}

	depth, err := strconv.Atoi(os.Getenv(DepthEnv))
	if err != nil || depth < 1 {
		fmt.Fprintln(os.Stderr, "helper: bad depth")
		os.Exit(1)
	}

	d := diag.New(depth)
	r := relay.New(syscall.SIGINT, d)
	r.Arm()

	b := NewBuilder(depth, d, r)
	b.execArgs = []string{"-test.run=TestChainMemberHelper"}

	if err := b.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "helper:", err)
		r.Exit(1)
	}
	r.Exit(0)
}

var diagLine = regexp.MustCompile(`^fork # *(\d+) \(pid (\d+)\):\t(.*)$`)

// TestChainBuildsAndUnwinds drives a real three-member chain: it spawns the
// top member, watches the diagnostic stream until the terminal member
// announces its signal wait, interrupts it, and verifies the whole chain
// unwinds with a success status.
func TestChainBuildsAndUnwinds(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns real processes")
	}

	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(exe, "-test.run=TestChainMemberHelper")
	cmd.Env = append(os.Environ(),
		"SIGSTACK_CHAIN_HELPER=1",
		DepthEnv+"=3",
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}

	// The chain hangs forever if the terminal member is never signalled;
	// don't let a broken run hang the suite.
	watchdog := time.AfterFunc(30*time.Second, func() { cmd.Process.Kill() })
	defer watchdog.Stop()

	events := map[string]int{}
	signalled := false
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		m := diagLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		events[m[3]]++

		// Terminal member is parked: interrupt it and let the chain unwind.
		if m[1] == "1" && m[3] == "last child awaiting signal" && !signalled {
			signalled = true
			pid, err := strconv.Atoi(m[2])
			if err != nil {
				t.Errorf("unparseable pid in diagnostic: %v", err)
				continue
			}
			if err := syscall.Kill(pid, syscall.SIGINT); err != nil {
				t.Errorf("interrupting terminal member: %v", err)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		t.Fatalf("chain top exited with error: %v", err)
	}
	if !signalled {
		t.Fatal("terminal member never announced its signal wait")
	}

	want := map[string]int{
		"started":                    3,
		"waiting":                    2,
		"last child awaiting signal": 1,
		"caught signal":              1,
		"exiting":                    3,
	}
	for event, n := range want {
		if events[event] != n {
			t.Errorf("saw %d %q diagnostics, want %d (all: %v)", events[event], event, n, events)
		}
	}
	if events["did not die after reraise! calling forced-exit"] != 0 {
		t.Error("re-raise failed to kill the terminal member")
	}
}
