// ABOUTME: Tests for the root CLI command structure and global flags
// ABOUTME: Verifies subcommands are attached and flags have sane defaults
package commands

import (
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "vault" {
		t.Errorf("Use = %q, want %q", cmd.Use, "vault")
	}
	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	want := []string{"fact", "migrate", "rotate-key", "status", "export", "clear", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmdGlobalFlags(t *testing.T) {
	cmd := NewRootCmd()

	tests := []struct {
		flagName  string
		shorthand string
		defValue  string
	}{
		{"verbose", "v", "false"},
		{"quiet", "q", "false"},
	}
	for _, tt := range tests {
		flag := cmd.PersistentFlags().Lookup(tt.flagName)
		if flag == nil {
			t.Fatalf("--%s flag not found", tt.flagName)
		}
		if flag.Shorthand != tt.shorthand {
			t.Errorf("--%s shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.shorthand)
		}
		if flag.DefValue != tt.defValue {
			t.Errorf("--%s default = %q, want %q", tt.flagName, flag.DefValue, tt.defValue)
		}
	}
}
