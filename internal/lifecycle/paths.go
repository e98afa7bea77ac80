package lifecycle

import (
	"path/filepath"

	"github.com/xln3/forgeagent/internal/config"
)

// Paths is the set of filesystem locations a daemon instance owns. Socket
// is always a filesystem path (DefaultPaths uses worker.sock); nothing here
// picks a "127.0.0.1:port" address for Windows, where worker.Network() is
// "tcp" and Socket is passed to the listener and dialer unchanged.
type Paths struct {
	Socket string
	DB     string
	PID    string
	Log    string
}

// DefaultPaths returns the conventional paths under the XDG state/data
// directories, scoped by a name so multiple daemons (e.g. one per project
// root) don't collide.
func DefaultPaths(name string) Paths {
	state := config.GetPaths().State
	dir := filepath.Join(state, "daemon", name)
	return Paths{
		Socket: filepath.Join(dir, "worker.sock"),
		DB:     filepath.Join(dir, "worker.db"),
		PID:    filepath.Join(dir, "worker.pid"),
		Log:    filepath.Join(dir, "worker.log"),
	}
}

// Dir returns the directory all of Paths' files live under.
func (p Paths) Dir() string {
	return filepath.Dir(p.Socket)
}
