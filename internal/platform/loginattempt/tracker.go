// Package loginattempt counts consecutive failed logins per username and
// decides when an account has crossed the lockout threshold.
package loginattempt

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultTTL         = 15 * time.Minute
	DefaultCapacity    = 10_000
)

// Entry is the ephemeral failure record kept for one username.
type Entry struct {
	Username    string
	FailedCount int
	LastFailure time.Time
}

// Tracker is implemented by every backend. Calls for the same username are
// linearizable; calls for different usernames never block each other.
type Tracker interface {
	// RecordFailure increments the username's count, creating the entry if
	// absent, and returns the count after the increment.
	RecordFailure(ctx context.Context, username string) (int, error)
	// HasExceededMaxAttempts reports whether the stored count reached the
	// threshold. It never increments.
	HasExceededMaxAttempts(ctx context.Context, username string) (bool, error)
	Evict(ctx context.Context, username string) error
	MaxAttempts() int
}
