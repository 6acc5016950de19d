package policy

import (
	"time"
)

// Rejection codes, stable for API clients.
const (
	CodeUnknownCategory      = "unknown_category"
	CodeWrongSpecialty       = "wrong_specialty"
	CodeOrthodontistOnly     = "orthodontist_only_orthodontics"
	CodeClinicianCannotServe = "clinician_cannot_serve"
	CodeDayNotAvailable      = "day_not_available"
	CodeOutsideHours         = "outside_hours"
	CodeInvalidInterval      = "invalid_interval"
)

// Rejection explains why a slot cannot be booked.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(code, msg string) *Rejection {
	return &Rejection{Code: code, Message: msg}
}

// Validator checks candidate slots against a policy table. Both the booking
// path and the reschedule path go through the same Validate call.
type Validator struct {
	table Table
}

func NewValidator(table Table) *Validator {
	return &Validator{table: table}
}

// Validate returns nil when the slot is bookable, or a *Rejection for the
// first failed check. Checks run in a fixed order: category, role pairing,
// weekday, hour range, granularity.
func (v *Validator) Validate(category Category, role Role, date time.Time, at Clock) error {
	p, ok := v.table.Lookup(category)
	if !ok {
		return reject(CodeUnknownCategory, "this service has no scheduling policy")
	}

	if rej := checkPairing(category, role); rej != nil {
		return rej
	}

	w, ok := p.Window(date.Weekday())
	if !ok {
		return reject(CodeDayNotAvailable, p.DayMessage)
	}
	if !w.Allows(at) {
		return reject(CodeOutsideHours, p.HoursMessage)
	}
	if !w.OnGrid(at) {
		return reject(CodeInvalidInterval, p.IntervalMessage)
	}
	return nil
}

// checkPairing enforces the strict two-way match between orthodontics and
// orthodontists.
func checkPairing(category Category, role Role) *Rejection {
	switch category {
	case CategoryOrthodontics:
		if role != RoleOrthodontist {
			return reject(CodeWrongSpecialty, "only an orthodontist can attend orthodontics appointments")
		}
	case CategoryGeneral:
		if role == RoleOrthodontist {
			return reject(CodeOrthodontistOnly, "an orthodontist can only attend orthodontics appointments")
		}
		if role != RoleGeneralDentist {
			return reject(CodeClinicianCannotServe, "this clinician cannot attend this service")
		}
	}
	return nil
}
