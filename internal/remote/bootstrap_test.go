package remote

import (
	"os"
	"strings"
	"testing"

	"github.com/xln3/forgeagent/pkg/types"
)

func TestSSHArgsIncludesBatchModeAndKey(t *testing.T) {
	host := types.HostDescriptor{
		Hostname: "example.com", Port: 2222, Username: "deploy",
		AuthMethod: types.AuthKey, KeyPath: "/home/u/.ssh/id_ed25519",
	}
	args := sshArgs(host, "echo hi")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "BatchMode=yes") {
		t.Fatalf("expected BatchMode=yes in args: %v", args)
	}
	if !strings.Contains(joined, "-i /home/u/.ssh/id_ed25519") {
		t.Fatalf("expected -i key path in args: %v", args)
	}
	if !strings.Contains(joined, "-p 2222") {
		t.Fatalf("expected -p 2222 in args: %v", args)
	}
	if args[len(args)-2] != "deploy@example.com" {
		t.Fatalf("expected target second-to-last, got %v", args)
	}
	if args[len(args)-1] != "echo hi" {
		t.Fatalf("expected remote command last, got %v", args)
	}
}

func TestAskpassScriptIsExecutableAndEscapesPassword(t *testing.T) {
	path, err := askpassScript("p'ss")
	if err != nil {
		t.Fatalf("askpassScript: %v", err)
	}
	defer os.Remove(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("expected mode 0700, got %v", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `p'\''ss`) {
		t.Fatalf("expected escaped password in script, got %q", data)
	}
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	got := shellQuote("it's a path")
	want := `'it'\''s a path'`
	if got != want {
		t.Fatalf("shellQuote(%q) = %q, want %q", "it's a path", got, want)
	}
}

func TestParseDaemonStartedExtractsJSONLine(t *testing.T) {
	output := "some banner\nmore noise\nDAEMON_STARTED:{\"pid\":123,\"port\":4821,\"version\":\"1.2.3\",\"capabilities\":[\"exec\"]}\ntrailer\n"
	status, err := parseDaemonStarted(output)
	if err != nil {
		t.Fatalf("parseDaemonStarted: %v", err)
	}
	if status.PID != 123 || status.Port != 4821 || status.Version != "1.2.3" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestParseDaemonStartedMissingLineErrors(t *testing.T) {
	if _, err := parseDaemonStarted("no marker here\n"); err == nil {
		t.Fatal("expected an error when no DAEMON_STARTED line is present")
	}
}

func TestBootstrapErrorFormatsHostAndOp(t *testing.T) {
	err := &BootstrapError{Host: "deploy@example.com:22", Op: "probe runtime", Err: os.ErrNotExist}
	if !strings.HasPrefix(err.Error(), "[deploy@example.com:22] probe runtime:") {
		t.Fatalf("unexpected error message: %s", err.Error())
	}
}

func TestHostLabelPrefersID(t *testing.T) {
	withID := types.HostDescriptor{ID: "prod-1", Hostname: "10.0.0.1"}
	if hostLabel(withID) != "prod-1" {
		t.Fatalf("expected ID to win, got %s", hostLabel(withID))
	}
	withoutID := types.HostDescriptor{Hostname: "10.0.0.2", Port: 22, Username: "root"}
	if hostLabel(withoutID) != "root@10.0.0.2:22" {
		t.Fatalf("unexpected label: %s", hostLabel(withoutID))
	}
}
