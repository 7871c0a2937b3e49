// Package model holds the persisted entities of the authentication engine.
// Timestamps are Unix milliseconds; nullable timestamps are pointers.
package model

// LoginMethod selects the first authentication step a user is expected to use.
type LoginMethod string

const (
	LoginMethodEmail    LoginMethod = "email"
	LoginMethodPassword LoginMethod = "password"
)

// Valid reports whether m is a known login method.
func (m LoginMethod) Valid() bool {
	return m == LoginMethodEmail || m == LoginMethodPassword
}

// CodeType is the purpose a verification code was minted for.
type CodeType string

const (
	CodeTypeLogin        CodeType = "login"
	CodeTypeVerification CodeType = "verification"
)

// Valid reports whether t is a known code type.
func (t CodeType) Valid() bool {
	return t == CodeTypeLogin || t == CodeTypeVerification
}

// User is an account. An empty PasswordHash marks a passwordless account.
type User struct {
	ID                  string
	Name                string
	PasswordHash        string
	Banned              bool
	LoginMethod         LoginMethod
	SecondFactorEnabled bool
	CreatedMs           int64
}

// HasPassword reports whether the user can authenticate with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// LoginEmail binds an email address to exactly one user.
type LoginEmail struct {
	Email      string
	UserID     string
	VerifiedMs *int64
	CreatedMs  int64
}

// Verified reports whether the address has been confirmed.
func (e *LoginEmail) Verified() bool {
	return e != nil && e.VerifiedMs != nil
}

// VerificationCode is the persisted half of a one-time code. Only the digest of
// the raw secret is stored.
type VerificationCode struct {
	CodeDigest    string
	Type          CodeType
	Email         string
	CallerState   string
	CreatedMs     int64
	ExpiresMs     int64
	ConsumedMs    *int64
	InvalidatedMs *int64
}

// Consumed reports whether the code has been used.
func (c *VerificationCode) Consumed() bool { return c.ConsumedMs != nil }

// Invalidated reports whether the code was superseded.
func (c *VerificationCode) Invalidated() bool { return c.InvalidatedMs != nil }

// Expired reports whether the code's lifetime ended before nowMs.
func (c *VerificationCode) Expired(nowMs int64) bool { return c.ExpiresMs < nowMs }

// Valid reports whether the code can still be consumed at nowMs.
func (c *VerificationCode) Valid(nowMs int64) bool {
	return !c.Consumed() && !c.Invalidated() && !c.Expired(nowMs)
}

// Clone returns a deep copy, including the nullable timestamps.
func (c *VerificationCode) Clone() *VerificationCode {
	if c == nil {
		return nil
	}
	out := *c
	out.ConsumedMs = cloneMs(c.ConsumedMs)
	out.InvalidatedMs = cloneMs(c.InvalidatedMs)
	return &out
}

// Session is a long-lived login, addressed by the digest of its refresh secret.
type Session struct {
	ID                  string
	UserID              string
	UserAgent           *string
	IP                  string
	RefreshSecretDigest string
	InvalidatedMs       *int64
	CreatedMs           int64
	ExpiresMs           int64
}

// SessionToken is a short-lived access credential tied to a session.
type SessionToken struct {
	TokenDigest string
	SessionID   string
	CreatedMs   int64
	ExpiresMs   int64
}

// Ms returns a pointer to v, for populating nullable timestamps.
func Ms(v int64) *int64 { return &v }

func cloneMs(v *int64) *int64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
