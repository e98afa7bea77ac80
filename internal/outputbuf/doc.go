// Package outputbuf is the per-task append-only output log: a strictly
// increasing position counter, positional reads, and push subscribers for
// in-process readers alongside the polling interface cross-process IPC
// clients use. A Manager indexes buffers by task id and evicts finished
// ones past an age threshold.
package outputbuf
