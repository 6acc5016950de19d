package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

const (
	uniqueViolation      = "23505"
	slotUniqueConstraint = "appointments_slot_unique"
)

const appointmentColumns = `id, document_id, patient_given_name, patient_family_name,
	service_id, clinician_id, room_id, slot_date, slot_time, status, created_at, updated_at`

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewPgRepository returns a repository whose dates are read back as
// midnight in loc.
func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

func (r *PgRepository) localDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
}

func dateParam(d time.Time) string {
	return d.Format(policy.DateLayout)
}

func isSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && pgErr.ConstraintName == slotUniqueConstraint
	}
	return false
}

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time

	err := row.Scan(
		&a.ID,
		&a.DocumentID,
		&a.PatientGivenName,
		&a.PatientFamilyName,
		&a.ServiceID,
		&a.ClinicianID,
		&a.RoomID,
		&date,
		&a.Time,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = r.localDate(date)
	return &a, nil
}

func (r *PgRepository) collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Reference data

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	var s ClinicService
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) GetClinicianByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	var c Clinician
	err := r.pool.QueryRow(ctx, `
		SELECT id, given_name, family_name, role
		FROM clinicians
		WHERE id = $1
	`, id).Scan(&c.ID, &c.GivenName, &c.FamilyName, &c.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicianNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	var rm Room
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM rooms
		WHERE id = $1
	`, id).Scan(&rm.ID, &rm.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return r.scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	var clinicianID *uuid.UUID
	if filter.ClinicianID != nil {
		clinicianID = filter.ClinicianID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR clinician_id = $1)
		ORDER BY slot_date ASC, slot_time ASC
	`, clinicianID)
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

func (r *PgRepository) SlotTaken(ctx context.Context, slot Slot, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE service_id = $1
			  AND clinician_id = $2
			  AND slot_date = $3::date
			  AND slot_time = $4
			  AND id <> $5
		)
	`, slot.ServiceID, slot.ClinicianID, dateParam(slot.Date), slot.Time, excludeID).Scan(&taken)
	if err != nil {
		return false, err
	}
	return taken, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9, $10, $11, $12)
		RETURNING `+appointmentColumns,
		a.ID, a.DocumentID, a.PatientGivenName, a.PatientFamilyName,
		a.ServiceID, a.ClinicianID, a.RoomID, dateParam(a.Date), a.Time,
		a.Status, a.CreatedAt, a.UpdatedAt,
	)

	out, err := r.scanAppointment(row)
	if err != nil {
		if isSlotViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return out, nil
}

// UpdateAppointment rewrites a pending row. A row completed since it was
// read is left alone and reported as ErrAlreadyCompleted.
func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET document_id = $2,
		    patient_given_name = $3,
		    patient_family_name = $4,
		    service_id = $5,
		    clinician_id = $6,
		    room_id = $7,
		    slot_date = $8::date,
		    slot_time = $9,
		    updated_at = $10
		WHERE id = $1
		  AND status = $11
		RETURNING `+appointmentColumns,
		a.ID, a.DocumentID, a.PatientGivenName, a.PatientFamilyName,
		a.ServiceID, a.ClinicianID, a.RoomID, dateParam(a.Date), a.Time, a.UpdatedAt,
		StatusPending,
	)

	out, err := r.scanAppointment(row)
	if err != nil {
		if isSlotViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, r.missingOrCompleted(ctx, r.pool, a.ID)
		}
		return nil, err
	}
	return out, nil
}

// missingOrCompleted explains why a status-guarded write touched no row.
func (r *PgRepository) missingOrCompleted(ctx context.Context, q rowQuerier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrAlreadyCompleted
	}
	return ErrAppointmentNotFound
}

// CompleteAppointment flips a pending row to completed and writes the
// archive copy in one transaction.
func (r *PgRepository) CompleteAppointment(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns,
		id, StatusCompleted, at, StatusPending,
	)

	appt, err := r.scanAppointment(row)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, r.missingOrCompleted(ctx, tx, id)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment_archive (
			id, appointment_id, document_id, patient_given_name, patient_family_name,
			service_id, clinician_id, room_id, slot_date, slot_time, status,
			created_at, updated_at, archived_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10, $11, $12, $13, $14)
	`,
		uuid.New(), appt.ID, appt.DocumentID, appt.PatientGivenName, appt.PatientFamilyName,
		appt.ServiceID, appt.ClinicianID, appt.RoomID, dateParam(appt.Date), appt.Time, appt.Status,
		appt.CreatedAt, appt.UpdatedAt, at,
	)
	if err != nil {
		return nil, fmt.Errorf("insert archive: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListArchive(ctx context.Context, appointmentID uuid.UUID) ([]ArchivedAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, document_id, patient_given_name, patient_family_name,
		       service_id, clinician_id, room_id, slot_date, slot_time, status,
		       created_at, updated_at, archived_at
		FROM appointment_archive
		WHERE appointment_id = $1
		ORDER BY archived_at ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ArchivedAppointment
	for rows.Next() {
		var rec ArchivedAppointment
		var date time.Time
		err := rows.Scan(
			&rec.ID,
			&rec.AppointmentID,
			&rec.DocumentID,
			&rec.PatientGivenName,
			&rec.PatientFamilyName,
			&rec.ServiceID,
			&rec.ClinicianID,
			&rec.RoomID,
			&date,
			&rec.Time,
			&rec.Status,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&rec.ArchivedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Appointment.ID = rec.AppointmentID
		rec.Date = r.localDate(date)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Retention

func (r *PgRepository) FindCompletedOnOrBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND slot_date <= $2::date
		ORDER BY slot_date ASC, slot_time ASC
	`, StatusCompleted, dateParam(cutoff))
	if err != nil {
		return nil, err
	}
	return r.collectAppointments(rows)
}

// DeleteArchivedCompleted removes a live row only while it is still
// completed and has an archive copy. It reports whether a row went away.
func (r *PgRepository) DeleteArchivedCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments a
		WHERE a.id = $1
		  AND a.status = $2
		  AND EXISTS (
			SELECT 1 FROM appointment_archive x WHERE x.appointment_id = a.id
		  )
	`, id, StatusCompleted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
