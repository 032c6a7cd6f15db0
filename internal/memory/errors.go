package memory

import (
	"errors"

	"github.com/rcliao/tiered-memory/internal/snapshot"
)

var (
	// ErrNotInitialized is returned by every operation before Initialize
	// completes or after Shutdown.
	ErrNotInitialized = errors.New("memory manager not initialized")

	// ErrInvalidOperation marks a request the manager does not recognize.
	ErrInvalidOperation = errors.New("invalid memory operation")

	// ErrTierUnavailable marks a tier that failed during a multi-tier scan.
	// It is logged, never returned from Retrieve.
	ErrTierUnavailable = errors.New("tier unavailable")

	// ErrNotFound is returned when no tier holds the requested id.
	ErrNotFound = errors.New("memory not found")

	// ErrCorruptSnapshot is returned when persisted data cannot be decoded.
	ErrCorruptSnapshot = snapshot.ErrCorrupt
)
