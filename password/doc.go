// Package password implements secret hashing, verification and the strength
// rules for new passwords.
//
// Two primitives are provided: [Bcrypt] (the default, fixed cost) and [Argon2]
// (argon2id PHC strings). [Comparer] sits in front of either and memoizes
// compare outcomes in a [ResultCache] keyed by a digest of the
// secret:digest pair.
//
// # Architecture boundaries
//
// This package owns hashing, verification and password policy only. Deciding
// what a mismatch means for a login is the Engine's job.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive digests.
//   - Log plaintext secrets or write them to a cache.
package password
