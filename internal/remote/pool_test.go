package remote

import (
	"testing"

	"github.com/xln3/forgeagent/pkg/types"
)

func TestPoolGetUnknownHostReturnsFalse(t *testing.T) {
	p := NewPool("/opt/forgeagent-worker", "/local/forgeagent-worker", "forgeagent-worker --version")
	if _, ok := p.Get(types.HostDescriptor{Hostname: "nope.example.com"}); ok {
		t.Fatal("expected Get to report false for a host never connected")
	}
}

func TestKeyPrefersHostID(t *testing.T) {
	withID := types.HostDescriptor{ID: "prod-1", Hostname: "10.0.0.1", Username: "root", Port: 22}
	if key(withID) != "prod-1" {
		t.Fatalf("expected key to use ID, got %s", key(withID))
	}
	withoutID := types.HostDescriptor{Hostname: "10.0.0.2", Username: "root", Port: 22}
	if key(withoutID) != "root@10.0.0.2:22" {
		t.Fatalf("unexpected key: %s", key(withoutID))
	}
}

func TestDisconnectRemovesEntry(t *testing.T) {
	p := NewPool("/opt/forgeagent-worker", "/local/forgeagent-worker", "forgeagent-worker --version")
	host := types.HostDescriptor{ID: "h1", Hostname: "10.0.0.1"}

	p.mu.Lock()
	p.entries[key(host)] = &entry{conn: types.RemoteConnection{Host: host, State: types.RemoteReady}}
	p.mu.Unlock()

	if _, ok := p.Get(host); !ok {
		t.Fatal("expected entry to be present before Disconnect")
	}
	p.Disconnect(host)
	if _, ok := p.Get(host); ok {
		t.Fatal("expected entry to be gone after Disconnect")
	}
}
