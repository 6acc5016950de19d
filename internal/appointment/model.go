package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusCompleted AppointmentStatus = "completed"
)

// ClinicService is a bookable dental service. Owned by the master-data side.
type ClinicService struct {
	ID     uuid.UUID
	Name   string
	Active bool
}

func (s ClinicService) Category() policy.Category {
	return policy.CategoryForService(s.Name)
}

type Clinician struct {
	ID         uuid.UUID
	GivenName  string
	FamilyName string
	Role       string
}

func (c Clinician) ScheduleRole() policy.Role {
	return policy.RoleForTitle(c.Role)
}

type Room struct {
	ID   uuid.UUID
	Name string
}

// Slot is the tuple that at most one live appointment may hold.
type Slot struct {
	ServiceID   uuid.UUID
	ClinicianID uuid.UUID
	Date        time.Time
	Time        string
}

// Key identifies the slot for locking.
func (s Slot) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", s.ServiceID, s.ClinicianID, s.Date.Format(policy.DateLayout), s.Time)
}

type Appointment struct {
	ID                uuid.UUID
	DocumentID        string
	PatientGivenName  string
	PatientFamilyName string
	ServiceID         uuid.UUID
	ClinicianID       uuid.UUID
	RoomID            uuid.UUID
	Date              time.Time // clinic-local midnight
	Time              string    // HH:MM
	Status            AppointmentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (a Appointment) Slot() Slot {
	return Slot{
		ServiceID:   a.ServiceID,
		ClinicianID: a.ClinicianID,
		Date:        a.Date,
		Time:        a.Time,
	}
}

func (a Appointment) Weekday() time.Weekday {
	return a.Date.Weekday()
}

// ArchivedAppointment is the insert-only copy written when an appointment
// is completed.
type ArchivedAppointment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Appointment
	ArchivedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type ListFilter struct {
	ClinicianID *uuid.UUID
}

// reference is the resolved set of records a booking points at.
type reference struct {
	service   *ClinicService
	clinician *Clinician
	room      *Room
}
