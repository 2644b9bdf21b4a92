// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into an audit log.
package queue

// CleanupCompletedEvent is published after each successful cleanup pass,
// scheduled or manual. It carries enough detail for downstream consumers to
// build an audit trail of deleted records without querying the primary
// database.
type CleanupCompletedEvent struct {
	DeletedUsers       int      `json:"deleted_users"`
	DeletedUserIDs     []uint64 `json:"deleted_user_ids"`
	DeletedOTPRequests int      `json:"deleted_otp_requests"`
	RanAt              string   `json:"ran_at"`
}
