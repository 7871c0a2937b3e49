// Package rate provides the Redis-backed fixed-window throttle applied to
// verification code delivery.
//
// # Window semantics
//
// INCR + PEXPIRE on the first hit. Keys are <prefix>:<code type>:<email>,
// prefix "afs" by default.
//
// # What this package must NOT do
//
//   - Decide how a throttled request is reported to clients.
//   - Be imported outside the authflow module.
package rate
