package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictChecker_HasConflict(t *testing.T) {
	repo := newMemoryRepo()
	existing := seedAppointment(t, repo, "2025-04-09", false)
	checker := NewConflictChecker(repo)
	ctx := context.Background()

	taken, err := checker.HasConflict(ctx, existing.Slot(), uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = checker.HasConflict(ctx, existing.Slot(), existing.ID)
	require.NoError(t, err)
	assert.False(t, taken, "an appointment never conflicts with itself")

	other := existing.Slot()
	other.Time = "12:40"
	taken, err = checker.HasConflict(ctx, other, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestConflictChecker_CompletedStillHoldsSlot(t *testing.T) {
	repo := newMemoryRepo()
	done := seedAppointment(t, repo, "2025-04-09", true)

	taken, err := NewConflictChecker(repo).HasConflict(context.Background(), done.Slot(), uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestSlotKey(t *testing.T) {
	a := seedAppointment(t, newMemoryRepo(), "2025-04-09", false)
	key := a.Slot().Key()
	assert.Contains(t, key, a.ServiceID.String())
	assert.Contains(t, key, a.ClinicianID.String())
	assert.Contains(t, key, "2025-04-09:12:00")
}
