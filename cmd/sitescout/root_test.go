package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestNewRootCmd tests root command wiring.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "sitescout" {
		t.Errorf("expected use sitescout, got %q", cmd.Use)
	}

	want := []string{"scan", "compare", "init", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}

	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("expected persistent verbose flag")
	}
}

// TestVersionCmd tests version output.
func TestVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "sitescout version ") {
		t.Errorf("expected version line, got %q", out)
	}
	if !strings.Contains(out, "commit:") || !strings.Contains(out, "built:") {
		t.Errorf("expected commit and build date lines, got %q", out)
	}
}

// TestGetVersion tests version fallback behavior.
func TestGetVersion(t *testing.T) {
	if got := getVersion(); got == "" {
		t.Error("expected non-empty version")
	}
	if got := getCommit(); got == "" {
		t.Error("expected non-empty commit")
	}
	if got := getDate(); got == "" {
		t.Error("expected non-empty date")
	}
}
