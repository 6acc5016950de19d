package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-engine/internal/config"
	"github.com/hackgods/clinic-appointment-engine/internal/metrics"
	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

// SweepResult summarizes one retention run.
type SweepResult struct {
	Cutoff     time.Time
	Candidates int
	Deleted    int
	Failed     int
}

// Sweeper removes completed appointments from the live table once they are
// older than the retention window. Archive copies are never touched.
type Sweeper struct {
	repo    Repository
	window  time.Duration
	loc     *time.Location
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewSweeper(repo Repository, cfg config.Config, logger zerolog.Logger, rec *metrics.Recorder) *Sweeper {
	loc := cfg.ClinicLocation
	if loc == nil {
		loc = time.UTC
	}
	window := cfg.RetentionWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Sweeper{
		repo:    repo,
		window:  window,
		loc:     loc,
		log:     logger.With().Str("component", "retention").Logger(),
		metrics: rec,
		now:     time.Now,
	}
}

// Cutoff is clinic-local today minus the retention window, at midnight.
// Appointments dated on or before it are eligible.
func (s *Sweeper) Cutoff() time.Time {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	days := int(s.window / (24 * time.Hour))
	return today.AddDate(0, 0, -days)
}

// Sweep deletes eligible rows one at a time. A row that fails is logged and
// counted; the sweep carries on with the rest.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	res := SweepResult{Cutoff: s.Cutoff()}

	candidates, err := s.repo.FindCompletedOnOrBefore(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("find purgeable appointments: %w", err)
	}
	res.Candidates = len(candidates)

	for _, appt := range candidates {
		if err := ctx.Err(); err != nil {
			s.metrics.Sweep(res.Deleted, res.Failed, time.Since(start).Seconds())
			return res, err
		}

		deleted, err := s.repo.DeleteArchivedCompleted(ctx, appt.ID)
		if err != nil {
			res.Failed++
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to purge appointment")
			continue
		}
		if !deleted {
			// gone already, or no archive copy to fall back on
			s.log.Debug().Str("appointment_id", appt.ID.String()).Msg("appointment skipped by purge")
			continue
		}

		res.Deleted++
		logEvent(ctx, s.repo, s.log, s.now(), appt.ID, EventAppointmentPurged, map[string]any{
			"date": appt.Date.Format(policy.DateLayout),
			"time": appt.Time,
		})
	}

	s.metrics.Sweep(res.Deleted, res.Failed, time.Since(start).Seconds())
	s.log.Info().
		Str("cutoff", res.Cutoff.Format(policy.DateLayout)).
		Int("candidates", res.Candidates).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Msg("retention sweep finished")

	return res, nil
}
