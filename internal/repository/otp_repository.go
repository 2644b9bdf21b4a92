package repository

import (
	"context"
	"database/sql"
	"time"
)

// OTPRequest mirrors the 'otp_requests' table. Only the SHA-256 hash of the
// emailed code is stored; a leaked table cannot be used to verify accounts.
// Rows past expires_at are swept by the maintenance scheduler.
type OTPRequest struct {
	ID        uint64
	UserID    uint64
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// Create inserts a verification code for the user, replacing any code issued
// earlier so only the latest emailed code is usable.
func (r *OTPRepo) Create(ctx context.Context, userID uint64, codeHash string, exp time.Time) error {
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM otp_requests WHERE user_id=?", userID); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO otp_requests (user_id, code_hash, expires_at) VALUES (?,?,?)",
		userID, codeHash, exp)
	return err
}

// Consume validates the code hash for the user and deletes the row on
// success. Returns ErrOTPNotFound when no live code exists and ErrOTPMismatch
// when the hash differs.
func (r *OTPRepo) Consume(ctx context.Context, userID uint64, codeHash string) error {
	var (
		id   uint64
		hash string
		exp  time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, code_hash, expires_at FROM otp_requests WHERE user_id=? LIMIT 1",
		userID).Scan(&id, &hash, &exp)
	if err == sql.ErrNoRows {
		return ErrOTPNotFound
	}
	if err != nil {
		return err
	}
	if time.Now().UTC().After(exp) {
		return ErrOTPNotFound
	}
	if hash != codeHash {
		return ErrOTPMismatch
	}
	_, err = r.DB.ExecContext(ctx, "DELETE FROM otp_requests WHERE id=?", id)
	return err
}
