package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-engine/internal/config"
	"github.com/hackgods/clinic-appointment-engine/internal/metrics"
	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

func newTestSweeper(repo *memoryRepo, now time.Time) *Sweeper {
	cfg := config.Config{ClinicLocation: clinicTZ, RetentionWindow: 7 * 24 * time.Hour}
	s := NewSweeper(repo, cfg, zerolog.Nop(), metrics.New())
	s.now = func() time.Time { return now }
	return s
}

// seedAppointment stores an appointment dated on date, completing and
// archiving it when completed is true.
func seedAppointment(t *testing.T, repo *memoryRepo, date string, completed bool) Appointment {
	t.Helper()

	d, err := policy.ParseDate(date, clinicTZ)
	require.NoError(t, err)

	a := Appointment{
		ID:          uuid.New(),
		DocumentID:  "1032456789",
		ServiceID:   uuid.New(),
		ClinicianID: uuid.New(),
		RoomID:      uuid.New(),
		Date:        d,
		Time:        "12:00",
		Status:      StatusPending,
	}
	_, err = repo.InsertAppointment(context.Background(), a)
	require.NoError(t, err)

	if completed {
		done, err := repo.CompleteAppointment(context.Background(), a.ID, d.Add(13*time.Hour))
		require.NoError(t, err)
		a = *done
	}
	return a
}

func TestSweeper_Cutoff(t *testing.T) {
	// 03:00 UTC on the 20th is still the 19th in the clinic
	s := newTestSweeper(newMemoryRepo(), time.Date(2025, 4, 20, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-04-12", s.Cutoff().Format(policy.DateLayout))
}

func TestSweeper_Sweep(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2025, 4, 20, 2, 0, 0, 0, clinicTZ)

	eightDaysOld := seedAppointment(t, repo, "2025-04-12", true)
	sevenDaysOld := seedAppointment(t, repo, "2025-04-13", true)
	threeDaysOld := seedAppointment(t, repo, "2025-04-17", true)
	oldPending := seedAppointment(t, repo, "2025-03-01", false)

	res, err := newTestSweeper(repo, now).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-04-13", res.Cutoff.Format(policy.DateLayout))
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 0, res.Failed)

	ctx := context.Background()
	_, err = repo.GetAppointmentByID(ctx, eightDaysOld.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = repo.GetAppointmentByID(ctx, sevenDaysOld.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = repo.GetAppointmentByID(ctx, threeDaysOld.ID)
	assert.NoError(t, err)
	_, err = repo.GetAppointmentByID(ctx, oldPending.ID)
	assert.NoError(t, err)

	// archive copies survive the purge
	records, err := repo.ListArchive(ctx, eightDaysOld.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Equal(t, 2, countEvents(repo, EventAppointmentPurged))
}

func TestSweeper_RowFailureIsNotFatal(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2025, 4, 20, 2, 0, 0, 0, clinicTZ)

	stuck := seedAppointment(t, repo, "2025-04-01", true)
	seedAppointment(t, repo, "2025-04-02", true)
	seedAppointment(t, repo, "2025-04-03", true)
	repo.deleteErr[stuck.ID] = errStoreDown

	res, err := newTestSweeper(repo, now).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 1, res.Failed)

	_, err = repo.GetAppointmentByID(context.Background(), stuck.ID)
	assert.NoError(t, err)
}

func TestSweeper_SkipsCompletedWithoutArchive(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2025, 4, 20, 2, 0, 0, 0, clinicTZ)

	a := seedAppointment(t, repo, "2025-04-01", false)
	a.Status = StatusCompleted
	repo.appointments[a.ID] = a

	res, err := newTestSweeper(repo, now).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 0, res.Deleted)

	_, err = repo.GetAppointmentByID(context.Background(), a.ID)
	assert.NoError(t, err)
}

func TestSweeper_NothingToDo(t *testing.T) {
	repo := newMemoryRepo()
	res, err := newTestSweeper(repo, time.Now()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Empty(t, repo.eventTypes())
}

func countEvents(repo *memoryRepo, eventType string) int {
	n := 0
	for _, ev := range repo.eventTypes() {
		if ev == eventType {
			n++
		}
	}
	return n
}
