// Package internal contains helpers that are private to authflow, chiefly
// secret generation and digesting.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: step orchestrators behind every Engine operation
//   - rate: Redis-backed fixed-window throttle for code delivery
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
//   - Log or persist raw secrets.
package internal
