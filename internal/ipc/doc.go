// Package ipc implements the worker's wire protocol: a 4-byte big-endian
// length prefix followed by a JSON payload, read and written over any
// net.Conn. Frames carry either a request (id, type, payload) or a
// response (id, success, data/error); the client correlates responses to
// pending callers by id.
package ipc
