// Package maintenance implements the scheduled cleanup of stale account
// state: accounts that never completed email verification within the grace
// period, and one-time-password requests whose expiry has passed. The
// Engine owns the two cleanup rules; the Scheduler owns the recurring timer
// and the administrative surface around it.
package maintenance

import (
	"context"
	"fmt"
	"time"
)

// UnverifiedUser is the slice of account state the cleanup rules need: the
// record identifier and when the account was created.
type UnverifiedUser struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence contract consumed by the engine. Atomicity is
// assumed within each call but not across the two record kinds.
type Store interface {
	// FindUnverifiedUsersOlderThan returns unverified accounts created
	// before the cutoff.
	FindUnverifiedUsersOlderThan(ctx context.Context, cutoff time.Time) ([]UnverifiedUser, error)
	// DeleteUsers removes the given account records.
	DeleteUsers(ctx context.Context, ids []uint64) error
	// FindExpiredOTPRequests returns OTP request IDs whose expiry precedes now.
	FindExpiredOTPRequests(ctx context.Context, now time.Time) ([]uint64, error)
	// DeleteOTPRequests removes the given OTP request records.
	DeleteOTPRequests(ctx context.Context, ids []uint64) error
}

// UserCleanup reports the outcome of the unverified-user rule. Deleted IDs
// are kept for the audit trail.
type UserCleanup struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []uint64 `json:"deleted_ids"`
}

// OTPCleanup reports the outcome of the expired-OTP rule; only the count is
// of interest.
type OTPCleanup struct {
	DeletedCount int `json:"deleted_count"`
}

// Result is the outcome of one cleanup pass. The two rules are deleted
// independently, so a Result may be meaningful even when the pass as a whole
// returned an error (see PartialError).
type Result struct {
	UnverifiedUsers    UserCleanup `json:"unverified_users"`
	ExpiredOTPRequests OTPCleanup  `json:"expired_otp_requests"`
	RanAt              time.Time   `json:"ran_at"`
}

// PartialError is returned when at least one cleanup rule failed. The Result
// still carries the counts of whatever succeeded, and the per-rule errors
// record what went wrong where.
type PartialError struct {
	Result  Result
	UserErr error
	OTPErr  error
}

func (e *PartialError) Error() string {
	switch {
	case e.UserErr != nil && e.OTPErr != nil:
		return fmt.Sprintf("cleanup failed: unverified users: %v; expired otp requests: %v", e.UserErr, e.OTPErr)
	case e.UserErr != nil:
		return fmt.Sprintf("cleanup partially failed: unverified users: %v", e.UserErr)
	default:
		return fmt.Sprintf("cleanup partially failed: expired otp requests: %v", e.OTPErr)
	}
}

// Engine executes the two cleanup rules against a Store.
type Engine struct {
	store       Store
	gracePeriod time.Duration // minimum age before an unverified account is deletable
}

func NewEngine(store Store, gracePeriod time.Duration) *Engine {
	return &Engine{store: store, gracePeriod: gracePeriod}
}

// Run performs one cleanup pass: unverified users first, expired OTP
// requests second. The rules are independent; a failure in one never blocks
// or rolls back the other. When any rule fails the returned error is a
// *PartialError wrapping the per-rule causes alongside the partial Result.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	res := Result{RanAt: time.Now().UTC()}

	userErr := e.cleanUnverifiedUsers(ctx, &res)
	otpErr := e.cleanExpiredOTPRequests(ctx, &res)

	if userErr != nil || otpErr != nil {
		return res, &PartialError{Result: res, UserErr: userErr, OTPErr: otpErr}
	}
	return res, nil
}

func (e *Engine) cleanUnverifiedUsers(ctx context.Context, res *Result) error {
	cutoff := time.Now().UTC().Add(-e.gracePeriod)
	users, err := e.store.FindUnverifiedUsersOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find unverified users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}
	ids := make([]uint64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	if err := e.store.DeleteUsers(ctx, ids); err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	res.UnverifiedUsers = UserCleanup{DeletedCount: len(ids), DeletedIDs: ids}
	return nil
}

func (e *Engine) cleanExpiredOTPRequests(ctx context.Context, res *Result) error {
	ids, err := e.store.FindExpiredOTPRequests(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("find expired otp requests: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := e.store.DeleteOTPRequests(ctx, ids); err != nil {
		return fmt.Errorf("delete otp requests: %w", err)
	}
	res.ExpiredOTPRequests = OTPCleanup{DeletedCount: len(ids)}
	return nil
}

// Preview returns the records a pass would delete right now, without
// deleting anything. Backs the administrative candidates endpoint.
func (e *Engine) Preview(ctx context.Context) ([]UnverifiedUser, []uint64, error) {
	cutoff := time.Now().UTC().Add(-e.gracePeriod)
	users, err := e.store.FindUnverifiedUsersOlderThan(ctx, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("find unverified users: %w", err)
	}
	otpIDs, err := e.store.FindExpiredOTPRequests(ctx, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("find expired otp requests: %w", err)
	}
	return users, otpIDs, nil
}
