// Package security derives the security posture report exposed by
// Engine.SecurityReport.
//
// # What this package must NOT do
//
//   - See key material. It works from algorithm names and durations only.
package security
