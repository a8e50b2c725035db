// Package jwt issues and verifies the two session token classes, access and
// refresh, as compact signed JWTs.
//
// # Key material
//
// A [Manager] runs in exactly one algorithm family, chosen at construction:
//
//   - HMAC (HS256, HS384, HS512): one shared secret signs and verifies. The
//     secret must never leave the server.
//   - RSA (RS256, RS384, RS512): the private key signs, the public key verifies.
//     Both PEM keys are required and must form a pair.
//
// Missing or unusable key material is a [ConfigError] from [NewManager]; there
// is no per-call key failure.
//
// # Claims
//
// Both token classes carry sub and sid. Access tokens also require role.
// The signer owns the reserved claims exp and type and overwrites whatever the
// caller supplied for them.
//
// # Verification
//
// [Manager.VerifyAccess] and [Manager.VerifyRefresh] return (nil, false) for
// every failure: bad signature, foreign algorithm, expiry beyond the leeway,
// malformed structure, or the wrong token class. The reason is not reported.
package jwt
