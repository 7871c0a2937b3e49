// Package audit implements async event dispatching for authentication
// outcomes.
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON lines, slog, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full.
//   - [Event]: structured record with timestamp, type, step, user, session, IP.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. Which events to emit is
// decided by the engine and the flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authflow or any sibling internal package.
//   - Carry raw secrets, digests or passwords in events.
package audit
