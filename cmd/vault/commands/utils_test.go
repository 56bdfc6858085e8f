// ABOUTME: Tests for CLI display helpers
// ABOUTME: Covers truncation edges and relative time formatting
package commands

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
		{"abc", 2, "ab"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, c := range cases {
		if got := truncate(c.in, c.maxLen); got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.maxLen, got, c.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	cases := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "unknown"},
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, c := range cases {
		if got := formatTime(c.t); got != c.want {
			t.Errorf("formatTime(%v) = %q, want %q", c.t, got, c.want)
		}
	}
}

func TestVersionCmdOutput(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	defer SetVersion("dev", "none", "unknown")

	if versionInfo.Version != "1.2.3" {
		t.Errorf("Version = %q", versionInfo.Version)
	}
}
