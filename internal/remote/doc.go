// Package remote implements §4.14 (bootstrapping a worker daemon onto a
// remote host over SSH) and §4.15 (a connection pool that tracks each
// remote host's bootstrap state machine and exposes a health-checked
// client once ready). Bootstrap shells out to the system ssh binary via
// os/exec (uploads stream through `cat >` over ssh), the same subprocess-driven approach internal/toolset's bash
// tool uses for local commands — there is no SSH library in the module's
// dependency set, and spec's own design notes call for driving the
// system's ssh client rather than embedding one.
package remote
