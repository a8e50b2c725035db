// Package apitoken issues and authenticates long-lived opaque bearer tokens
// for non-interactive clients.
//
// A token has the form act_<ulid>_<secret>. The ULID locates the Redis
// record; only a bcrypt hash of the secret half is stored. Authentication of
// an unknown or malformed token still performs one bcrypt comparison so the
// response time does not reveal which identifiers exist.
package apitoken
