package notification

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a reminder job. Pending is the only
// non-terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrDeliveryFailed wraps errors returned by a Channel.
	ErrDeliveryFailed = errors.New("notification: delivery failed")
	// ErrMeetingCancelled is returned by a Composer when the job's meeting
	// no longer takes place.
	ErrMeetingCancelled = errors.New("notification: meeting cancelled")
)

// Job is a claimed reminder awaiting delivery.
type Job struct {
	ID        string
	MeetingID string
	UserID    string
	FireAt    time.Time
	Offset    Offset
}

// Store is the persistence the dispatcher needs.
type Store interface {
	// ClaimDue atomically claims up to limit pending jobs due at now whose
	// previous claim is absent or older than lease.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Job, error)
	// Complete moves a pending job to status and reports false when the job
	// had already left pending.
	Complete(ctx context.Context, id string, status Status, lastError string, at time.Time) (bool, error)
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Composer renders the message for a job.
type Composer interface {
	Compose(ctx context.Context, job Job) (string, error)
}

// Channel delivers a message to a user.
type Channel interface {
	Send(ctx context.Context, userID, content string) error
}
