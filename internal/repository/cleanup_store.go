package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/clinic-auth/internal/maintenance"
)

// CleanupStore implements the maintenance.Store contract on top of MySQL:
// the read-then-delete pattern for unverified accounts and expired OTP
// requests. Each delete is atomic within its own statement; atomicity across
// the two record kinds is neither needed nor attempted — the engine treats
// them independently.
type CleanupStore struct{ DB *sql.DB }

func NewCleanupStore(db *sql.DB) *CleanupStore { return &CleanupStore{DB: db} }

// FindUnverifiedUsersOlderThan lists unverified accounts created before the
// cutoff, oldest first.
func (s *CleanupStore) FindUnverifiedUsersOlderThan(ctx context.Context, cutoff time.Time) ([]maintenance.UnverifiedUser, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, created_at FROM users WHERE is_verified=FALSE AND created_at < ? ORDER BY created_at",
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []maintenance.UnverifiedUser
	for rows.Next() {
		var u maintenance.UnverifiedUser
		if err := rows.Scan(&u.ID, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUsers removes the given account rows.
func (s *CleanupStore) DeleteUsers(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM users WHERE id IN (" + placeholders(len(ids)) + ")"
	_, err := s.DB.ExecContext(ctx, query, args(ids)...)
	return err
}

// FindExpiredOTPRequests lists OTP request IDs whose expiry precedes now.
func (s *CleanupStore) FindExpiredOTPRequests(ctx context.Context, now time.Time) ([]uint64, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id FROM otp_requests WHERE expires_at < ?", now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteOTPRequests removes the given OTP request rows.
func (s *CleanupStore) DeleteOTPRequests(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	query := "DELETE FROM otp_requests WHERE id IN (" + placeholders(len(ids)) + ")"
	_, err := s.DB.ExecContext(ctx, query, args(ids)...)
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func args(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
