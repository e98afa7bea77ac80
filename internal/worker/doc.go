// Package worker implements the §4.11/§4.12 worker daemon: a server that
// listens on a Unix domain socket (POSIX) or a loopback TCP port (Windows)
// and dispatches framed internal/ipc requests against internal/store and
// internal/outputbuf, running internal/agentloop for "execute" requests;
// and a client that dials the same listener, correlates responses to
// callers by request id, and exposes a small streaming helper for polling
// a running task's output.
package worker
