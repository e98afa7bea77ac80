// Package remoteworker implements the §6 remote worker HTTP API: the
// small bearer-token-protected server a bootstrapped remote daemon runs,
// exposing health, command execution, and file read/write endpoints that
// internal/remote's connection pool and a local CLI front-end call over
// HTTP once bootstrap completes. Routing and middleware follow
// go-chi/chi, matching the rest of this module's HTTP surface.
package remoteworker
