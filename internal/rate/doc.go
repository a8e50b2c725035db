// Package rate provides fixed-window Redis counters used to throttle the
// gateway endpoints and API token authentication.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Keys are
// <prefix>:<scope>:<id>, where scope is one of the Scope* constants.
//
// # What this package must NOT do
//
//   - Decide policy limits (callers pass the maximum per call).
//   - Be imported outside the authcore module.
package rate
