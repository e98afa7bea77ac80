// Package diagnostics implements §4.16: classifying a failed command's
// stderr against a set of known failure families, proposing a remediating
// Fix for each, and driving a bounded retry loop that applies at most one
// fix of a given kind before giving up and surfacing the failure to the
// user.
package diagnostics
