// Package redisstore implements storage.Store on Redis.
//
// # Design
//
// Every entity is a Redis hash; nullable timestamps are stored as empty
// strings. Verification codes are additionally indexed per (type, email) in a
// set so that outstanding codes can be invalidated without a scan. State
// transitions that must be atomic (claiming a unique key, consuming a code,
// bulk invalidation) run as Lua scripts.
//
// Verification records are retained for a grace period after expiry so that a
// late attempt is classified as expired rather than unknown.
package redisstore
