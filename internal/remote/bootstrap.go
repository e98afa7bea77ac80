package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xln3/forgeagent/pkg/types"
)

// daemonStartedPrefix is the line a bootstrapped worker prints to stdout
// once it is listening, carrying its own JSON-encoded status.
const daemonStartedPrefix = "DAEMON_STARTED:"

// remoteStatus is what a worker prints after daemonStartedPrefix. It
// carries no token: Bootstrap trusts this line only to observe that the
// remote process started, and always uses the bearer token it generated
// itself (see DaemonInfo's doc comment).
type remoteStatus struct {
	PID          int      `json:"pid"`
	Port         int      `json:"port"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// BootstrapError wraps a failure during remote setup with the host it
// happened against, so a pool managing many hosts can report which one
// failed without the caller having to thread that through themselves.
type BootstrapError struct {
	Host string
	Op   string
	Err  error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Host, e.Op, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

func hostLabel(h types.HostDescriptor) string {
	if h.ID != "" {
		return h.ID
	}
	return fmt.Sprintf("%s@%s:%d", h.Username, h.Hostname, h.Port)
}

// sshArgs builds the argument vector for an ssh invocation against host,
// appending remoteCmd as the command to run. For key/agent auth,
// BatchMode=yes disables interactive prompts so a bad key/host never hangs
// waiting on input; password auth omits it, since BatchMode would also
// disable the SSH_ASKPASS helper the password goes through.
func sshArgs(host types.HostDescriptor, remoteCmd string) []string {
	var args []string
	if host.AuthMethod != types.AuthPassword {
		args = append(args, "-o", "BatchMode=yes")
	}
	args = append(args, "-o", "StrictHostKeyChecking=accept-new")
	if host.Port != 0 {
		args = append(args, "-p", strconv.Itoa(host.Port))
	}
	if host.AuthMethod == types.AuthKey && host.KeyPath != "" {
		args = append(args, "-i", host.KeyPath)
	}
	target := host.Hostname
	if host.Username != "" {
		target = host.Username + "@" + host.Hostname
	}
	args = append(args, target, remoteCmd)
	return args
}

// askpassScript writes a 0700 shell script that echoes password, for use
// as SSH_ASKPASS with DISPLAY forced non-empty (ssh refuses to invoke
// SSH_ASKPASS otherwise). The caller must remove the returned path once
// the ssh invocation completes.
func askpassScript(password string) (string, error) {
	f, err := os.CreateTemp("", "forgeagent-askpass-*")
	if err != nil {
		return "", fmt.Errorf("remote: create askpass script: %w", err)
	}
	defer f.Close()

	escaped := strings.ReplaceAll(password, "'", `'\''`)
	script := fmt.Sprintf("#!/bin/sh\necho '%s'\n", escaped)
	if _, err := f.WriteString(script); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("remote: write askpass script: %w", err)
	}
	if err := os.Chmod(f.Name(), 0o700); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("remote: chmod askpass script: %w", err)
	}
	return f.Name(), nil
}

// runSSH runs ssh against host with remoteCmd, returning combined stdout.
// Under password auth it wires SSH_ASKPASS through a throwaway script
// rather than writing the password to the command line or environment
// ssh itself forwards.
func runSSH(ctx context.Context, host types.HostDescriptor, remoteCmd string, stdin io.Reader) (string, error) {
	cmd := exec.CommandContext(ctx, "ssh", sshArgs(host, remoteCmd)...)
	cmd.Stdin = stdin

	if host.AuthMethod == types.AuthPassword {
		path, err := askpassScript(host.Password)
		if err != nil {
			return "", err
		}
		defer os.Remove(path)
		cmd.Env = append(os.Environ(),
			"SSH_ASKPASS="+path,
			"SSH_ASKPASS_REQUIRE=force",
			"DISPLAY=:0",
		)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ssh %s: %w: %s", remoteCmd, err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

// ProbeRuntime checks whether a compatible runtime is already installed on
// host, returning its reported version string, or an error if none was
// found.
func ProbeRuntime(ctx context.Context, host types.HostDescriptor, probeCmd string) (string, error) {
	out, err := runSSH(ctx, host, probeCmd, nil)
	if err != nil {
		return "", &BootstrapError{Host: hostLabel(host), Op: "probe runtime", Err: err}
	}
	return strings.TrimSpace(out), nil
}

// UploadBinary streams the contents of localPath to remotePath on host via
// `cat > remotePath`, making the uploaded file executable afterward.
func UploadBinary(ctx context.Context, host types.HostDescriptor, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &BootstrapError{Host: hostLabel(host), Op: "open local binary", Err: err}
	}
	defer f.Close()

	uploadCmd := fmt.Sprintf("cat > %s", shellQuote(remotePath))
	if _, err := runSSH(ctx, host, uploadCmd, f); err != nil {
		return &BootstrapError{Host: hostLabel(host), Op: "upload binary", Err: err}
	}

	chmodCmd := fmt.Sprintf("chmod +x %s", shellQuote(remotePath))
	if _, err := runSSH(ctx, host, chmodCmd, nil); err != nil {
		return &BootstrapError{Host: hostLabel(host), Op: "chmod uploaded binary", Err: err}
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Bootstrap starts a worker daemon at remotePath on host, passing it a
// freshly generated bearer token via environment, and waits for its
// DAEMON_STARTED line. The returned DaemonInfo.Token is always the token
// generated here, never anything the remote process might echo back — a
// compromised or misbehaving remote cannot substitute its own token for
// the one the local pool will use to authenticate to it.
func Bootstrap(ctx context.Context, host types.HostDescriptor, remotePath string) (types.DaemonInfo, error) {
	token := uuid.NewString()
	startCmd := fmt.Sprintf("FORGEAGENT_TOKEN=%s %s --worker-daemon", shellQuote(token), shellQuote(remotePath))

	out, err := runSSH(ctx, host, startCmd, nil)
	if err != nil {
		return types.DaemonInfo{}, &BootstrapError{Host: hostLabel(host), Op: "start daemon", Err: err}
	}

	status, err := parseDaemonStarted(out)
	if err != nil {
		return types.DaemonInfo{}, &BootstrapError{Host: hostLabel(host), Op: "parse daemon status", Err: err}
	}

	return types.DaemonInfo{
		Version:      status.Version,
		PID:          status.PID,
		Port:         status.Port,
		StartedAt:    time.Now(),
		Capabilities: status.Capabilities,
		Token:        token,
	}, nil
}

func parseDaemonStarted(output string) (remoteStatus, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, daemonStartedPrefix) {
			continue
		}
		var status remoteStatus
		raw := strings.TrimPrefix(line, daemonStartedPrefix)
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			return remoteStatus{}, fmt.Errorf("remote: decode %s line: %w", daemonStartedPrefix, err)
		}
		return status, nil
	}
	return remoteStatus{}, fmt.Errorf("remote: no %s line in output", daemonStartedPrefix)
}
