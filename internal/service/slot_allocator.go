package service

import (
	"context"
	"errors"

	"github.com/wenwu/saas-platform/ipam-service/internal/ipam"
	"github.com/wenwu/saas-platform/ipam-service/internal/repository"
)

// DefaultMaxConflictAttempts bounds how many uniqueness conflicts a
// single claim tolerates before giving up with ConflictRetryExceeded.
const DefaultMaxConflictAttempts = 5

// InsertFunc attempts the atomic "insert if coordinate not already
// active" against the store. It returns repository.ErrDuplicate when the
// coordinate was claimed concurrently.
type InsertFunc func(ctx context.Context, c ipam.Coordinate) (err error)

// SlotAllocator claims the next free coordinate in a bounded namespace.
// The store's uniqueness constraint is the only serialization point:
// concurrent claims against the same namespace converge to distinct
// coordinates without any locking here.
type SlotAllocator struct {
	maxAttempts int
}

func NewSlotAllocator(maxConflictAttempts int) *SlotAllocator {
	if maxConflictAttempts <= 0 {
		maxConflictAttempts = DefaultMaxConflictAttempts
	}
	return &SlotAllocator{maxAttempts: maxConflictAttempts}
}

// Claim walks candidates in ascending order and attempts insert on each.
// A uniqueness conflict advances to the next candidate; more than
// maxAttempts conflicts in one call raises ConflictRetryExceeded.
// Running out of candidates before any insert is accepted raises
// CapacityExhausted: the namespace is genuinely full, not contended.
func (a *SlotAllocator) Claim(ctx context.Context, op string, next ipam.CandidateFunc, insert InsertFunc) (ipam.Coordinate, error) {
	conflicts := 0

	for {
		if err := ctx.Err(); err != nil {
			return ipam.Coordinate{}, err
		}

		candidate, ok := next()
		if !ok {
			return ipam.Coordinate{}, ipam.E(ipam.KindCapacityExhausted, op, "no free coordinate in namespace")
		}

		err := insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return ipam.Coordinate{}, err
		}

		conflicts++
		if conflicts >= a.maxAttempts {
			return ipam.Coordinate{}, ipam.E(ipam.KindConflictRetryExceeded, op, "conflict retry ceiling reached")
		}
	}
}
