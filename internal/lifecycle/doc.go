// Package lifecycle implements §4.13: the conventions for locating a
// worker daemon's socket, database, and pid file; checking whether one is
// already running; and starting or stopping one as a detached background
// process. It depends on internal/worker only for dialing/probing the
// socket, and on internal/filestore for the small pid/info cache — it has
// no knowledge of the worker's request types.
package lifecycle
