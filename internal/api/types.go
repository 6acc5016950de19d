package api

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-engine/internal/appointment"
	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

type AppointmentResponse struct {
	ID                uuid.UUID `json:"id"`
	DocumentID        string    `json:"document_id"`
	PatientGivenName  string    `json:"patient_given_name"`
	PatientFamilyName string    `json:"patient_family_name"`
	ServiceID         uuid.UUID `json:"service_id"`
	ClinicianID       uuid.UUID `json:"clinician_id"`
	RoomID            uuid.UUID `json:"room_id"`
	Date              string    `json:"date"`
	Time              string    `json:"time"`
	Weekday           string    `json:"weekday"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ArchiveRecordResponse struct {
	AppointmentResponse
	AppointmentID uuid.UUID `json:"appointment_id"`
	ArchivedAt    time.Time `json:"archived_at"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type ListArchiveResponse struct {
	Records []ArchiveRecordResponse `json:"records"`
}

type DeleteAppointmentResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		DocumentID:        a.DocumentID,
		PatientGivenName:  a.PatientGivenName,
		PatientFamilyName: a.PatientFamilyName,
		ServiceID:         a.ServiceID,
		ClinicianID:       a.ClinicianID,
		RoomID:            a.RoomID,
		Date:              a.Date.Format(policy.DateLayout),
		Time:              a.Time,
		Weekday:           strings.ToLower(a.Weekday().String()),
		Status:            string(a.Status),
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func toArchiveRecordResponse(rec appointment.ArchivedAppointment) ArchiveRecordResponse {
	resp := ArchiveRecordResponse{
		AppointmentResponse: toAppointmentResponse(rec.Appointment),
		AppointmentID:       rec.AppointmentID,
		ArchivedAt:          rec.ArchivedAt,
	}
	resp.ID = rec.ID
	return resp
}
