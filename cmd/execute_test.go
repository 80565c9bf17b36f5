package cmd

import (
	"os"
	"testing"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"kubesage"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestExecuteVersion(t *testing.T) {
	withArgs(t, "version")
	if code := Execute(); code != 0 {
		t.Errorf("Execute() = %d, want 0", code)
	}
}

func TestExecuteHelp(t *testing.T) {
	withArgs(t, "help")
	if code := Execute(); code != 0 {
		t.Errorf("Execute() = %d, want 0", code)
	}
}

func TestExecuteNoArgs(t *testing.T) {
	withArgs(t)
	if code := Execute(); code != 1 {
		t.Errorf("Execute() = %d, want 1", code)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	withArgs(t, "bogus")
	if code := Execute(); code != 1 {
		t.Errorf("Execute() = %d, want 1", code)
	}
}
