// Package session issues login sessions and their short-lived access tokens.
//
// A session is addressed by a ULID and by the digest of its refresh secret;
// each access token is addressed by the digest of its own secret. Both secrets
// are independent 32-byte random values returned to the caller once.
//
// # Architecture boundaries
//
// This package owns issuance only. Rotation, revocation and token validation
// are not provided.
//
// # What this package must NOT do
//
//   - Import authflow (no upward imports).
//   - Persist or log raw secrets.
package session
