// Package repository implements MySQL persistence for accounts and one-time
// verification codes. Sentinel errors defined here let handlers distinguish
// failure scenarios without inspecting driver-specific error strings.
package repository

import "errors"

// ErrEmailExists is returned when registration collides with an existing
// account email. Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrOTPNotFound is returned when no usable verification code exists for the
// user: none was issued, it was already consumed, or it has expired.
var ErrOTPNotFound = errors.New("otp not found")

// ErrOTPMismatch is returned when the presented code does not match the one
// on record. Handlers translate this into an HTTP 401 response.
var ErrOTPMismatch = errors.New("otp mismatch")
