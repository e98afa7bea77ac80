package types

import "time"

// RemoteConnectionState is the lifecycle state of a pooled remote worker
// connection.
type RemoteConnectionState string

const (
	RemoteConnecting   RemoteConnectionState = "connecting"
	RemoteBootstrapping RemoteConnectionState = "bootstrapping"
	RemoteReady        RemoteConnectionState = "ready"
	RemoteError        RemoteConnectionState = "error"
)

// HostDescriptor identifies an SSH target and its auth method.
type HostDescriptor struct {
	ID       string
	Hostname string
	Port     int
	Username string

	AuthMethod AuthMethod
	KeyPath    string
	Password   string
}

// AuthMethod is the SSH authentication strategy for a HostDescriptor.
type AuthMethod string

const (
	AuthKey      AuthMethod = "key"
	AuthPassword AuthMethod = "password"
	AuthAgent    AuthMethod = "agent"
)

// RemoteConnection is owned exclusively by the remote connection pool;
// callers hold only its ID.
type RemoteConnection struct {
	Host         HostDescriptor
	State        RemoteConnectionState
	Port         int
	PID          int
	LastActivity time.Time
	ErrorMessage string
}

// DaemonInfo is produced by a successful remote bootstrap. Token is the
// bearer token generated locally by internal/remote's Bootstrap and handed
// to the remote worker when it is started; it is never taken from anything
// the remote worker prints.
type DaemonInfo struct {
	Version      string
	PID          int
	Port         int
	StartedAt    time.Time
	Capabilities []string
	Token        string
}
