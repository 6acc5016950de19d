package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Reference data, read-only here
	GetServiceByID(ctx context.Context, id uuid.UUID) (*ClinicService, error)
	GetClinicianByID(ctx context.Context, id uuid.UUID) (*Clinician, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)

	// Reads
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)
	ListArchive(ctx context.Context, appointmentID uuid.UUID) ([]ArchivedAppointment, error)

	// For conflict checks. excludeID may be uuid.Nil.
	SlotTaken(ctx context.Context, slot Slot, excludeID uuid.UUID) (bool, error)

	// Writes. Insert and update return ErrSlotAlreadyBooked when the slot
	// uniqueness constraint rejects the row. Update only touches pending rows
	// and returns ErrAlreadyCompleted otherwise.
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	CompleteAppointment(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Retention
	FindCompletedOnOrBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)
	DeleteArchivedCompleted(ctx context.Context, id uuid.UUID) (bool, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
