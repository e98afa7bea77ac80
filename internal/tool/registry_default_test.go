package tool

import (
	"testing"

	"github.com/xln3/forgeagent/internal/permission"
)

func TestDefaultRegistryRegistersAllBuiltins(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	r, err := DefaultRegistry(t.TempDir(), permission.NewChecker(), permission.DefaultAgentPermissions())
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}

	want := []string{"bash", "edit", "write", "webfetch", "read", "list", "glob", "grep", "todoread", "todowrite"}
	for _, name := range want {
		if _, ok := r.Get(name); !ok {
			t.Errorf("expected tool %q to be registered", name)
		}
	}
	if got := len(r.Names()); got != len(want) {
		t.Errorf("expected %d tools registered, got %d (%v)", len(want), got, r.Names())
	}
}

func TestDefaultRegistryNilCheckerIsAccepted(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	r, err := DefaultRegistry(t.TempDir(), nil, permission.DefaultAgentPermissions())
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	if _, ok := r.Get("bash"); !ok {
		t.Error("expected bash tool to be registered even with a nil checker")
	}
}
