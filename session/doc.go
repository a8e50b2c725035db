// Package session provides the Redis-backed store for gateway login sessions.
//
// # Layout
//
// Each session is a Redis hash under <prefix>:<sid> with two fields:
//
//   - d:  the versioned JSON [Record]
//   - rh: hex SHA-256 fingerprint of the current refresh token
//
// The fingerprint lives outside the JSON so refresh rotation can compare and
// swap it in a single Lua script. The key TTL equals the refresh token
// lifetime and is never extended by reads or rotation.
//
// # What this package must NOT do
//
//   - Import authcore, jwt or gateway (no upward imports).
//   - Store refresh tokens, ID tokens or any other bearer secret.
package session
