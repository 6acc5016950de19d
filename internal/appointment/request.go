package appointment

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

// CreateRequest is the booking payload.
type CreateRequest struct {
	DocumentID        string `json:"document_id" validate:"required,number,min=8,max=15"`
	PatientGivenName  string `json:"patient_given_name" validate:"required,personname"`
	PatientFamilyName string `json:"patient_family_name" validate:"required,personname"`
	ServiceID         string `json:"service_id" validate:"required,uuid"`
	ClinicianID       string `json:"clinician_id" validate:"required,uuid"`
	RoomID            string `json:"room_id" validate:"required,uuid"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	Time              string `json:"time" validate:"required,clock"`
}

// UpdateRequest carries a partial update. Nil fields keep their value.
type UpdateRequest struct {
	DocumentID        *string `json:"document_id,omitempty"`
	PatientGivenName  *string `json:"patient_given_name,omitempty"`
	PatientFamilyName *string `json:"patient_family_name,omitempty"`
	ServiceID         *string `json:"service_id,omitempty"`
	ClinicianID       *string `json:"clinician_id,omitempty"`
	RoomID            *string `json:"room_id,omitempty"`
	Date              *string `json:"date,omitempty"`
	Time              *string `json:"time,omitempty"`
}

// mergeOnto applies the update over the current record and returns the
// full payload that has to pass validation again.
func (u UpdateRequest) mergeOnto(a Appointment) CreateRequest {
	req := CreateRequest{
		DocumentID:        a.DocumentID,
		PatientGivenName:  a.PatientGivenName,
		PatientFamilyName: a.PatientFamilyName,
		ServiceID:         a.ServiceID.String(),
		ClinicianID:       a.ClinicianID.String(),
		RoomID:            a.RoomID.String(),
		Date:              a.Date.Format(policy.DateLayout),
		Time:              a.Time,
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&req.DocumentID, u.DocumentID)
	set(&req.PatientGivenName, u.PatientGivenName)
	set(&req.PatientFamilyName, u.PatientFamilyName)
	set(&req.ServiceID, u.ServiceID)
	set(&req.ClinicianID, u.ClinicianID)
	set(&req.RoomID, u.RoomID)
	set(&req.Date, u.Date)
	set(&req.Time, u.Time)
	return req
}

var personNamePattern = regexp.MustCompile(`^\p{L}[\p{L} ]{0,49}$`)

// PersonName accepts letters and spaces, 1 to 50 characters, starting with a letter.
func PersonName(fl validator.FieldLevel) bool {
	return personNamePattern.MatchString(fl.Field().String())
}

// ClockTime accepts a strict 24h HH:MM value.
func ClockTime(fl validator.FieldLevel) bool {
	_, err := policy.ParseClock(fl.Field().String())
	return err == nil
}

// NewValidate returns a validator with the booking rules registered and
// json field names in error messages.
func NewValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("personname", PersonName)
	_ = validate.RegisterValidation("clock", ClockTime)
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// booking is a CreateRequest after parsing.
type booking struct {
	documentID  string
	givenName   string
	familyName  string
	serviceID   uuid.UUID
	clinicianID uuid.UUID
	roomID      uuid.UUID
	date        time.Time
	clock       policy.Clock
}

func (b booking) slot() Slot {
	return Slot{
		ServiceID:   b.serviceID,
		ClinicianID: b.clinicianID,
		Date:        b.date,
		Time:        b.clock.String(),
	}
}

func (b booking) apply(a *Appointment) {
	a.DocumentID = b.documentID
	a.PatientGivenName = b.givenName
	a.PatientFamilyName = b.familyName
	a.ServiceID = b.serviceID
	a.ClinicianID = b.clinicianID
	a.RoomID = b.roomID
	a.Date = b.date
	a.Time = b.clock.String()
}

func parseBooking(validate *validator.Validate, req CreateRequest, loc *time.Location) (booking, error) {
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.PatientGivenName = strings.TrimSpace(req.PatientGivenName)
	req.PatientFamilyName = strings.TrimSpace(req.PatientFamilyName)

	if err := validate.Struct(req); err != nil {
		return booking{}, fromValidatorError(err)
	}

	date, err := policy.ParseDate(req.Date, loc)
	if err != nil {
		return booking{}, invalid(CodeValidationFailed, err.Error())
	}
	clock, err := policy.ParseClock(req.Time)
	if err != nil {
		return booking{}, invalid(CodeValidationFailed, err.Error())
	}

	return booking{
		documentID:  req.DocumentID,
		givenName:   req.PatientGivenName,
		familyName:  req.PatientFamilyName,
		serviceID:   uuid.MustParse(req.ServiceID),
		clinicianID: uuid.MustParse(req.ClinicianID),
		roomID:      uuid.MustParse(req.RoomID),
		date:        date,
		clock:       clock,
	}, nil
}

func fromValidatorError(err error) *ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(CodeValidationFailed, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return invalid(CodeValidationFailed, strings.Join(msgs, "; "))
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "number":
		return fmt.Sprintf("%s must contain only digits", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between 8 and 15 digits", fe.Field())
	case "personname":
		return fmt.Sprintf("%s must be 1 to 50 letters or spaces", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must be YYYY-MM-DD", fe.Field())
	case "clock":
		return fmt.Sprintf("%s must be HH:MM in 24h format", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
