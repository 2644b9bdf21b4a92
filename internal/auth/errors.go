// Package auth implements the session-token lifecycle: issuing, verifying
// and revoking the access/refresh token pair used to authenticate API
// callers. Sentinel errors defined here let handlers distinguish failure
// modes that matter for client retry logic: an expired token should trigger
// a refresh attempt, while a malformed one should force a re-login.
package auth

import "errors"

// ErrInvalidPayload is returned when token claims fail the payload contract:
// empty subject, malformed email address, or a role outside the known set.
var ErrInvalidPayload = errors.New("invalid token payload")

// ErrTokenMalformed is returned when a token's structure or signature cannot
// be verified. Tokens signed with the wrong secret (e.g. an access token
// presented on the refresh path) fail with this error.
var ErrTokenMalformed = errors.New("token malformed")

// ErrTokenExpired is returned when a token carries a valid signature but its
// expiry has passed.
var ErrTokenExpired = errors.New("token expired")
