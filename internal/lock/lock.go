// Package lock provides the per-home mutual exclusion that keeps the
// check, settle and commit steps of a booking in one critical section.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when a lock could not be taken before ctx ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Release frees a held lock.
type Release func()

// Locker grants exclusive access to a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// HomeKey is the lock key for every state change on one home.
func HomeKey(homeID int64) string {
	return fmt.Sprintf("home:%d", homeID)
}

// RegistryKey serializes handle allocation and registration.
const RegistryKey = "homes:registry"
