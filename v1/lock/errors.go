package lock

import "errors"

var (
	// ErrSelfRelock indicates an acquire by the task that already holds
	// the lock. The lock's state is unchanged.
	ErrSelfRelock = errors.New("ownlock: lock already held by calling task")

	// ErrAcquireTimeout indicates the bounded wait expired before the
	// lock became available. The caller does not hold the lock.
	ErrAcquireTimeout = errors.New("ownlock: acquire timed out")

	// ErrUnownedRelease indicates a release by a task that is not the
	// current owner, including a release of a free lock. The lock's
	// state is unchanged.
	ErrUnownedRelease = errors.New("ownlock: release of lock not held by calling task")

	// ErrNoTask indicates the context carries no task handle, so
	// ownership cannot be tracked. Attach one with task.With.
	ErrNoTask = errors.New("ownlock: context carries no task handle")
)
