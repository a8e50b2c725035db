// Package gateway runs the browser login flow against an OpenID Connect
// provider such as Auth0 and binds the resulting authcore token pair to a
// Redis session.
//
// The flow is authorization code with PKCE. The state, nonce and code
// verifier travel in a short-lived HttpOnly cookie scoped to /callback. The
// ID token is verified against the provider JWKS, which is cached and
// refreshed in the background. A successful callback creates a session
// record keyed by a random session id and sets three cookies: the session
// id, the access token and the refresh token (scoped to /refresh).
//
// Refresh rotates the pair. Presenting a refresh token that was already
// rotated out revokes the whole session.
package gateway
