package chain

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.olrik.dev/sigstack/internal/diag"
)

type stubPauser struct {
	paused bool
}

func (p *stubPauser) Pause() { p.paused = true }

func testBuilder(depth int, out *bytes.Buffer, p Pauser) *Builder {
	return NewBuilder(depth, diag.NewTo(out, depth, 42), p)
}

func TestRunSpawnsOneChildOnePositionDeeper(t *testing.T) {
	var out bytes.Buffer
	pauser := &stubPauser{}
	b := testBuilder(3, &out, pauser)

	var spawned []int
	var waited []int
	b.spawnFn = func(childDepth int) (int, error) {
		spawned = append(spawned, childDepth)
		return 1000 + childDepth, nil
	}
	b.waitFn = func(pid int) error {
		waited = append(waited, pid)
		return nil
	}

	if err := b.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(spawned) != 1 || spawned[0] != 2 {
		t.Errorf("spawned children = %v, want exactly [2]", spawned)
	}
	if len(waited) != 1 || waited[0] != 1002 {
		t.Errorf("waited pids = %v, want exactly [1002]", waited)
	}
	if pauser.paused {
		t.Error("non-terminal member must not reach the signal wait")
	}
}

func TestRunTerminalMemberPausesInsteadOfSpawning(t *testing.T) {
	var out bytes.Buffer
	pauser := &stubPauser{}
	b := testBuilder(1, &out, pauser)

	b.spawnFn = func(int) (int, error) {
		t.Fatal("terminal member must not spawn")
		return 0, nil
	}

	if err := b.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !pauser.paused {
		t.Error("terminal member did not suspend on the pauser")
	}
	if !strings.Contains(out.String(), "last child awaiting signal") {
		t.Errorf("missing terminal diagnostic in %q", out.String())
	}
}

func TestRunSpawnFailureIsFatal(t *testing.T) {
	var out bytes.Buffer
	b := testBuilder(2, &out, &stubPauser{})

	spawnErr := errors.New("resource exhausted")
	b.spawnFn = func(int) (int, error) { return 0, spawnErr }
	b.waitFn = func(int) error {
		t.Fatal("must not wait after failed spawn")
		return nil
	}

	err := b.Run()
	if !errors.Is(err, spawnErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, spawnErr)
	}
	if strings.Contains(out.String(), "waiting") {
		t.Error("waiting diagnostic emitted after failed spawn")
	}
}

func TestRunWaitFailureIsFatal(t *testing.T) {
	var out bytes.Buffer
	b := testBuilder(2, &out, &stubPauser{})

	waitErr := errors.New("wait4: no child processes")
	b.spawnFn = func(childDepth int) (int, error) { return 4321, nil }
	b.waitFn = func(int) error { return waitErr }

	if err := b.Run(); !errors.Is(err, waitErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, waitErr)
	}
}

func TestRunDiagnosticSequence(t *testing.T) {
	var out bytes.Buffer
	b := testBuilder(2, &out, &stubPauser{})
	b.spawnFn = func(int) (int, error) { return 1, nil }
	b.waitFn = func(int) error { return nil }

	if err := b.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s := out.String()
	started := strings.Index(s, "started")
	waiting := strings.Index(s, "waiting")
	if started < 0 || waiting < 0 || started > waiting {
		t.Errorf("diagnostics out of order: %q", s)
	}
}
