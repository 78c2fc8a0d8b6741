// Package proctree recovers a live chain from the OS process table.
//
// The chain leaves no state behind other than its process-table entries, so
// observing it means walking parent→child links and reading each member's
// environment, where the spawner recorded the chain position. The process
// table is strictly a read-only input here.
package proctree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"go.olrik.dev/sigstack/internal/chain"
	"go.olrik.dev/sigstack/internal/core"
)

// Member is one chain process as seen in the process table.
type Member struct {
	Pid    int32
	PPid   int32
	Pgid   int
	Depth  int // 0 when the environment could not be read
	Status string
}

// Inspect walks the chain downward from the member with the given pid and
// returns the members in root-to-terminal order.
func Inspect(rootPid int32) ([]Member, error) {
	var members []Member

	pid := rootPid
	for range core.MaxChainDepth {
		p, err := process.NewProcess(pid)
		if err != nil {
			return members, fmt.Errorf("process %d: %w", pid, err)
		}
		members = append(members, describe(p))

		child, ok := chainChild(p)
		if !ok {
			return members, nil
		}
		pid = child
	}
	return members, nil
}

// FindChainRoot locates the topmost live chain member for the named binary:
// a matching process whose parent is not itself a chain member.
func FindChainRoot(binName string) (int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, fmt.Errorf("listing processes: %w", err)
	}

	matching := make(map[int32]int32) // pid -> ppid
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name != binName {
			continue
		}
		ppid, err := p.Ppid()
		if err != nil {
			continue
		}
		matching[p.Pid] = ppid
	}

	for pid, ppid := range matching {
		if _, parentIsMember := matching[ppid]; !parentIsMember {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("no running %s chain found", binName)
}

func describe(p *process.Process) Member {
	m := Member{Pid: p.Pid}
	if ppid, err := p.Ppid(); err == nil {
		m.PPid = ppid
	}
	if pgid, err := unix.Getpgid(int(p.Pid)); err == nil {
		m.Pgid = pgid
	}
	if status, err := p.Status(); err == nil {
		m.Status = strings.Join(status, ",")
	}
	m.Depth = memberDepth(p)
	return m
}

// memberDepth recovers a member's chain position from the environment its
// spawner handed it. Reading another process's environment needs matching
// privileges; 0 is returned when it cannot be read.
func memberDepth(p *process.Process) int {
	env, err := p.Environ()
	if err != nil {
		return 0
	}
	prefix := chain.DepthEnv + "="
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, prefix); ok {
			if depth, err := strconv.Atoi(v); err == nil {
				return depth
			}
		}
	}
	return 0
}

// chainChild returns the pid of p's chain child, if it has one. A chain
// member has at most one: the process it spawned with the chain marker in
// its environment.
func chainChild(p *process.Process) (int32, bool) {
	children, err := p.Children()
	if err != nil {
		return 0, false
	}
	marker := chain.RunEnv + "="
	for _, c := range children {
		env, err := c.Environ()
		if err != nil {
			continue
		}
		for _, e := range env {
			if strings.HasPrefix(e, marker) {
				return c.Pid, true
			}
		}
	}
	return 0, false
}
