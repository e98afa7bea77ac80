package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xln3/forgeagent/pkg/types"
)

// healthTimeout bounds the /health verification request issued once a
// daemon reports itself started.
const healthTimeout = 5 * time.Second

// entry is a pool's bookkeeping for one host: its current connection
// record plus the daemon info bootstrap produced, once ready.
type entry struct {
	mu      sync.Mutex
	connect sync.Mutex // serializes Connect for this host
	conn    types.RemoteConnection
	daemon  *types.DaemonInfo
}

// Pool tracks one RemoteConnection per distinct host, keyed by
// HostDescriptor.ID when set, otherwise user@host:port. Connect is
// idempotent: concurrent calls for the same host are serialized, and a
// call that finds the host ready returns the existing entry's state
// rather than starting a second bootstrap.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry

	// RemotePath is where Bootstrap uploads/starts the worker binary.
	RemotePath string
	// LocalBinary is the local worker binary UploadBinary streams to
	// RemotePath when ProbeRuntime reports none already installed.
	LocalBinary string
	// ProbeCmd is the remote command used to detect an existing
	// compatible runtime, e.g. "forgeagent-worker --version".
	ProbeCmd string

	httpClient *http.Client
}

// NewPool creates an empty pool.
func NewPool(remotePath, localBinary, probeCmd string) *Pool {
	return &Pool{
		entries:     make(map[string]*entry),
		RemotePath:  remotePath,
		LocalBinary: localBinary,
		ProbeCmd:    probeCmd,
		httpClient:  &http.Client{Timeout: healthTimeout},
	}
}

func key(h types.HostDescriptor) string {
	if h.ID != "" {
		return h.ID
	}
	return fmt.Sprintf("%s@%s:%d", h.Username, h.Hostname, h.Port)
}

// Get returns the current connection record for host, if the pool has
// seen it.
func (p *Pool) Get(host types.HostDescriptor) (types.RemoteConnection, bool) {
	p.mu.Lock()
	e, ok := p.entries[key(host)]
	p.mu.Unlock()
	if !ok {
		return types.RemoteConnection{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn, true
}

// Connect ensures a worker is bootstrapped and healthy on host, running
// the full probe/upload/start/health-check sequence at most once per host
// per pool lifetime unless a prior attempt ended in RemoteError, in which
// case a fresh Connect retries it.
func (p *Pool) Connect(ctx context.Context, host types.HostDescriptor) (types.RemoteConnection, error) {
	p.mu.Lock()
	e, ok := p.entries[key(host)]
	if !ok {
		e = &entry{conn: types.RemoteConnection{Host: host, State: types.RemoteConnecting}}
		p.entries[key(host)] = e
	}
	p.mu.Unlock()

	e.connect.Lock()
	defer e.connect.Unlock()

	e.mu.Lock()
	state := e.conn.State
	e.mu.Unlock()
	if state == types.RemoteReady {
		return e.snapshot(), nil
	}

	return p.bootstrap(ctx, host, e)
}

func (p *Pool) bootstrap(ctx context.Context, host types.HostDescriptor, e *entry) (types.RemoteConnection, error) {
	label := hostLabel(host)

	e.setState(types.RemoteBootstrapping, "")

	if _, err := ProbeRuntime(ctx, host, p.ProbeCmd); err != nil {
		if uploadErr := UploadBinary(ctx, host, p.LocalBinary, p.RemotePath); uploadErr != nil {
			e.setState(types.RemoteError, uploadErr.Error())
			return e.snapshot(), fmt.Errorf("[%s] %w", label, uploadErr)
		}
	}

	daemon, err := Bootstrap(ctx, host, p.RemotePath)
	if err != nil {
		e.setState(types.RemoteError, err.Error())
		return e.snapshot(), fmt.Errorf("[%s] %w", label, err)
	}

	if err := p.verifyHealth(ctx, host, daemon); err != nil {
		e.setState(types.RemoteError, err.Error())
		return e.snapshot(), fmt.Errorf("[%s] %w", label, err)
	}

	e.mu.Lock()
	e.daemon = &daemon
	e.conn = types.RemoteConnection{
		Host:         host,
		State:        types.RemoteReady,
		Port:         daemon.Port,
		PID:          daemon.PID,
		LastActivity: time.Now(),
	}
	result := e.conn
	e.mu.Unlock()
	return result, nil
}

func (p *Pool) verifyHealth(ctx context.Context, host types.HostDescriptor, daemon types.DaemonInfo) error {
	url := fmt.Sprintf("http://%s:%d/health", host.Hostname, daemon.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+daemon.Token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Disconnect marks host's entry as gone; a later Connect call starts a
// fresh bootstrap.
func (p *Pool) Disconnect(host types.HostDescriptor) {
	p.mu.Lock()
	delete(p.entries, key(host))
	p.mu.Unlock()
}

func (e *entry) setState(state types.RemoteConnectionState, errMsg string) {
	e.mu.Lock()
	e.conn.State = state
	e.conn.ErrorMessage = errMsg
	e.mu.Unlock()
}

func (e *entry) snapshot() types.RemoteConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}
