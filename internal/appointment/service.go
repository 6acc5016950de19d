package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-engine/internal/config"
	"github.com/hackgods/clinic-appointment-engine/internal/metrics"
	"github.com/hackgods/clinic-appointment-engine/internal/policy"
	redisclient "github.com/hackgods/clinic-appointment-engine/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
	EventAppointmentPurged      = "APPOINTMENT_PURGED"
)

const (
	opCreate     = "create"
	opReschedule = "reschedule"
)

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	policy    *policy.Validator
	conflicts *ConflictChecker
	validate  *validator.Validate
	loc       *time.Location
	log       zerolog.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger, rec *metrics.Recorder) *Service {
	loc := cfg.ClinicLocation
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		policy:    policy.NewValidator(policy.DefaultTable()),
		conflicts: NewConflictChecker(repo),
		validate:  NewValidate(),
		loc:       loc,
		log:       logger.With().Str("component", "appointments").Logger(),
		metrics:   rec,
		now:       time.Now,
	}
}

// CreateAppointment books a pending appointment. Checks run in order:
// field validation, slot conflict, reference resolution, slot policy.
// The write itself runs under the slot lock and the store uniqueness
// constraint has the final word.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	b, err := parseBooking(s.validate, req, s.loc)
	if err != nil {
		return nil, s.fail(opCreate, err)
	}

	if err := s.checkSlot(ctx, b, uuid.Nil); err != nil {
		return nil, s.fail(opCreate, err)
	}

	now := s.now()
	appt := Appointment{
		ID:        uuid.New(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.apply(&appt)

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, appt.Slot().Key(), func(lockCtx context.Context) error {
		out, err := s.repo.InsertAppointment(lockCtx, appt)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, s.fail(opCreate, s.mapWriteError(err, "create appointment"))
	}

	s.metrics.Booking(opCreate, metrics.OutcomeOK)
	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot", created.Slot().Key()).
		Msg("appointment created")

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"service_id":   created.ServiceID.String(),
		"clinician_id": created.ClinicianID.String(),
		"date":         created.Date.Format(policy.DateLayout),
		"time":         created.Time,
	})

	return created, nil
}

// RescheduleAppointment merges a partial update onto the stored record and
// re-runs every create check against the merged values, ignoring the
// appointment's own slot. Status is never changed here.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, upd UpdateRequest) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if current.Status == StatusCompleted {
		return nil, s.fail(opReschedule, ErrAlreadyCompleted)
	}

	b, err := parseBooking(s.validate, upd.mergeOnto(*current), s.loc)
	if err != nil {
		return nil, s.fail(opReschedule, err)
	}

	if err := s.checkSlot(ctx, b, current.ID); err != nil {
		return nil, s.fail(opReschedule, err)
	}

	next := *current
	b.apply(&next)
	next.UpdatedAt = s.now()

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, next.Slot().Key(), func(lockCtx context.Context) error {
		out, err := s.repo.UpdateAppointment(lockCtx, next)
		if err != nil {
			return err
		}
		updated = out
		return nil
	})
	if err != nil {
		return nil, s.fail(opReschedule, s.mapWriteError(err, "update appointment"))
	}

	s.metrics.Booking(opReschedule, metrics.OutcomeOK)
	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", current.Slot().Key()).
		Str("to", updated.Slot().Key()).
		Msg("appointment rescheduled")

	s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, map[string]any{
		"from_date": current.Date.Format(policy.DateLayout),
		"from_time": current.Time,
		"to_date":   updated.Date.Format(policy.DateLayout),
		"to_time":   updated.Time,
	})

	return updated, nil
}

// checkSlot runs the conflict pre-check, resolves the referenced records
// and validates the slot against the specialty policy.
func (s *Service) checkSlot(ctx context.Context, b booking, excludeID uuid.UUID) error {
	taken, err := s.conflicts.HasConflict(ctx, b.slot(), excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotAlreadyBooked
	}

	ref, err := s.resolve(ctx, b)
	if err != nil {
		return err
	}
	if !ref.service.Active {
		return invalid(CodeServiceInactive, fmt.Sprintf("service %q is not currently offered", ref.service.Name))
	}

	if err := s.policy.Validate(ref.service.Category(), ref.clinician.ScheduleRole(), b.date, b.clock); err != nil {
		var rej *policy.Rejection
		if errors.As(err, &rej) {
			s.metrics.Rejection(rej.Code)
			return invalid(rej.Code, rej.Message)
		}
		return err
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, b booking) (reference, error) {
	svc, err := s.repo.GetServiceByID(ctx, b.serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return reference{}, invalid(CodeServiceNotFound, "service does not exist")
		}
		return reference{}, fmt.Errorf("load service: %w", err)
	}

	clinician, err := s.repo.GetClinicianByID(ctx, b.clinicianID)
	if err != nil {
		if errors.Is(err, ErrClinicianNotFound) {
			return reference{}, invalid(CodeClinicianNotFound, "clinician does not exist")
		}
		return reference{}, fmt.Errorf("load clinician: %w", err)
	}

	room, err := s.repo.GetRoomByID(ctx, b.roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return reference{}, invalid(CodeRoomNotFound, "room does not exist")
		}
		return reference{}, fmt.Errorf("load room: %w", err)
	}

	return reference{service: svc, clinician: clinician, room: room}, nil
}

func (s *Service) mapWriteError(err error, action string) error {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBeingBooked
	case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrAlreadyCompleted):
		return err
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

// fail records the outcome of a failed booking attempt and returns err.
func (s *Service) fail(op string, err error) error {
	switch {
	case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrSlotBeingBooked):
		s.metrics.Booking(op, metrics.OutcomeConflict)
	case errors.Is(err, ErrAlreadyCompleted):
		s.metrics.Booking(op, metrics.OutcomeRejected)
	default:
		if _, ok := IsValidation(err); ok {
			s.metrics.Booking(op, metrics.OutcomeRejected)
		} else {
			s.metrics.Booking(op, metrics.OutcomeError)
		}
	}
	return err
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns appointments ordered by date then time.
func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// CompleteAppointment moves a pending appointment to completed and writes
// its archive copy in the same transaction.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.CompleteAppointment(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrAlreadyCompleted) {
			return nil, err
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.metrics.Completion()
	s.log.Info().Str("appointment_id", appt.ID.String()).Msg("appointment completed and archived")
	s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{})

	return appt, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.log.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}

func (s *Service) ListArchive(ctx context.Context, appointmentID uuid.UUID) ([]ArchivedAppointment, error) {
	records, err := s.repo.ListArchive(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	return records, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	logEvent(ctx, s.repo, s.log, s.now(), appointmentID, eventType, payload)
}

// logEvent appends to the audit trail. Failures are logged and swallowed.
func logEvent(ctx context.Context, repo Repository, log zerolog.Logger, at time.Time, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     at,
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
