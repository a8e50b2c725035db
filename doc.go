// Package authcore issues and verifies signed session tokens and hashes
// credentials for a web application's login flow.
//
// An [Engine] is built once at startup through [Builder.Build] and shared by
// reference. Its methods are safe to call from many goroutines: signing,
// verification and hashing are synchronous computations over configuration
// fixed at construction, and changing keys requires building a new Engine.
//
// # Tokens
//
// Access tokens require sub, role and sid. Refresh tokens require sub and sid.
// The signer sets exp and type. [Engine.VerifyAccess] and [Engine.VerifyRefresh]
// return (nil, false) for every rejected token; callers treat that as
// unauthenticated and cannot learn why.
//
// # Credentials
//
// [Engine.HashPassword] and [Engine.HashOpaqueToken] use bcrypt.
// [Engine.VerifyPassword] returns false for a malformed stored hash after doing
// the same work as for a wrong password.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and
// value types. Audit dispatch and report derivation live under internal/.
// The OAuth gateway, Redis session store, API tokens and HTTP middleware are
// sibling packages that consume the Engine.
//
// # What this package must NOT do
//
//   - Log or audit tokens, secrets or hashes.
//   - Perform network I/O.
//   - Import a sibling package that imports authcore.
package authcore
