// Package password implements one-way hashing and verification of passwords
// and opaque bearer tokens with bcrypt.
//
// # Output format
//
// Hashes use the modular crypt encoding produced by bcrypt:
//
//	$2a$<cost>$<22 char salt><31 char digest>
//
// [Bcrypt.NeedsRehash] reports hashes produced at a lower cost than the
// configured one so callers can re-hash on the next successful login.
//
// # Failure behavior
//
// [Bcrypt.Verify] returns only a boolean. A malformed stored hash is treated as
// a failed verification after a comparison of the same cost has been spent.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets; callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext secrets or hashes.
package password
