// Package middleware exposes HTTP middleware adapters over authcore.Engine
// token verification and apitoken authentication.
//
// # Guards
//
//   - [Guard] verifies a JWT access token from the Authorization header.
//   - [APIToken] authenticates an opaque act_ token.
//   - [Bearer] accepts either, dispatching on the token prefix.
//   - [RequireRole] restricts a guarded route to a set of roles.
//   - [AccessCookie] lets browsers send the access token as a cookie.
//   - [ClientInfo] records the caller IP and user agent for audit events.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Tell the client why a credential was rejected.
package middleware
