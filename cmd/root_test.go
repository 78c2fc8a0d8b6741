package cmd

import (
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	for _, name := range []string{"run", "observe", "version"} {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}

	for _, flag := range []string{"depth", "signal", "verbose"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("root command is missing persistent flag %q", flag)
		}
	}
}

func TestDepthFlagDefault(t *testing.T) {
	root := NewRootCommand()
	f := root.PersistentFlags().Lookup("depth")
	if f == nil {
		t.Fatal("depth flag missing")
	}
	if f.DefValue != "3" {
		t.Errorf("depth default = %q, want %q", f.DefValue, "3")
	}
	if f.Shorthand != "n" {
		t.Errorf("depth shorthand = %q, want %q", f.Shorthand, "n")
	}
}
