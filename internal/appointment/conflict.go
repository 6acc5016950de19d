package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConflictChecker answers whether a slot is already held by a live
// appointment of any status. It is a fast pre-check; the store constraint
// still decides races.
type ConflictChecker struct {
	repo Repository
}

func NewConflictChecker(repo Repository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// HasConflict ignores the appointment with excludeID, so a reschedule does
// not collide with itself. Pass uuid.Nil to exclude nothing.
func (c *ConflictChecker) HasConflict(ctx context.Context, slot Slot, excludeID uuid.UUID) (bool, error) {
	taken, err := c.repo.SlotTaken(ctx, slot, excludeID)
	if err != nil {
		return false, fmt.Errorf("check slot conflict: %w", err)
	}
	return taken, nil
}
