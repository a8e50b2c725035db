// Package internal contains helpers that are private to authcore: random
// values for OAuth state and API token secrets, token fingerprints, and the
// API token wire format.
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
