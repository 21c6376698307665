package auth

import (
	"math"
	"time"

	"github.com/nailstore/nailstore-api/internal/domain"
)

// LockoutPolicy decides when repeated failed sign-ins block an account and for
// how long. It only computes; persistence of the counter and the lockout end
// is the account store's job (its increments are atomic, so concurrent login
// attempts need no extra coordination here).
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

func NewLockoutPolicy(threshold int, window time.Duration) LockoutPolicy {
	return LockoutPolicy{Threshold: threshold, Window: window}
}

// RecordFailure bumps the account's failed-attempt counter and, once the
// counter reaches the threshold, stamps the lockout end.
func (p LockoutPolicy) RecordFailure(a *domain.Account, now time.Time) {
	a.FailedLogins++
	if a.FailedLogins >= p.Threshold {
		end := now.Add(p.Window)
		a.LockoutEnd = &end
	}
}

// ShouldLock reports whether a freshly incremented counter value crosses the
// threshold.
func (p LockoutPolicy) ShouldLock(failedAttempts int) bool {
	return failedAttempts >= p.Threshold
}

// LockoutUntil returns the moment a lockout starting now would end.
func (p LockoutPolicy) LockoutUntil(now time.Time) time.Time {
	return now.Add(p.Window)
}

// IsLocked reports whether the account is currently blocked and how many whole
// seconds remain (difference rounded up).
func (p LockoutPolicy) IsLocked(a *domain.Account, now time.Time) (bool, time.Duration) {
	if a.LockoutEnd == nil || !now.Before(*a.LockoutEnd) {
		return false, 0
	}
	remaining := a.LockoutEnd.Sub(now)
	secs := time.Duration(math.Ceil(remaining.Seconds())) * time.Second
	return true, secs
}

// Reset clears the failure counter and lockout end after a successful sign-in.
func (p LockoutPolicy) Reset(a *domain.Account) {
	a.FailedLogins = 0
	a.LockoutEnd = nil
}
