// Package policy holds the specialty rules that decide when a dental service
// can be booked: which weekdays, which hours, at what minute granularity and
// with which kind of clinician.
package policy

import (
	"slices"
	"time"
)

// Category is the closed set of service categories the clinic schedules.
type Category string

const (
	CategoryOrthodontics Category = "orthodontics"
	CategoryGeneral      Category = "general"
)

// Role is the closed set of clinician roles relevant to scheduling.
type Role string

const (
	RoleUnknown        Role = "unknown"
	RoleOrthodontist   Role = "orthodontist"
	RoleGeneralDentist Role = "general_dentist"
)

// Window is the bookable range for one weekday. EndHour is only bookable at
// minute zero.
type Window struct {
	StartHour int
	EndHour   int
	Minutes   []int
}

// Allows reports whether the clock time falls inside the hour range.
func (w Window) Allows(c Clock) bool {
	if c.Hour < w.StartHour || c.Hour > w.EndHour {
		return false
	}
	if c.Hour == w.EndHour && c.Minute != 0 {
		return false
	}
	return true
}

// OnGrid reports whether the minute is one of the allowed offsets.
func (w Window) OnGrid(c Clock) bool {
	return slices.Contains(w.Minutes, c.Minute)
}

// Policy is one row of the specialty table.
type Policy struct {
	Category Category
	Role     Role
	Days     map[time.Weekday]Window

	// Messages shown when a check fails for this category.
	DayMessage      string
	HoursMessage    string
	IntervalMessage string
}

// Window returns the bookable window for the weekday, if any.
func (p Policy) Window(day time.Weekday) (Window, bool) {
	w, ok := p.Days[day]
	return w, ok
}

// Table maps a category to its policy. It is built once and never mutated.
type Table map[Category]Policy

// Lookup returns the policy row for a category.
func (t Table) Lookup(c Category) (Policy, bool) {
	p, ok := t[c]
	return p, ok
}

// DefaultTable returns the clinic's current rules.
func DefaultTable() Table {
	weekday := Window{StartHour: 12, EndHour: 17, Minutes: []int{0, 40}}
	saturday := Window{StartHour: 12, EndHour: 15, Minutes: []int{0}}

	return Table{
		CategoryOrthodontics: {
			Category: CategoryOrthodontics,
			Role:     RoleOrthodontist,
			Days: map[time.Weekday]Window{
				time.Thursday: {StartHour: 13, EndHour: 19, Minutes: []int{0, 20, 40}},
			},
			DayMessage:      "orthodontics appointments are only available on Thursdays",
			HoursMessage:    "orthodontics hours are Thursday 13:00 to 19:00",
			IntervalMessage: "orthodontics appointments start every 20 minutes (00, 20, 40)",
		},
		CategoryGeneral: {
			Category: CategoryGeneral,
			Role:     RoleGeneralDentist,
			Days: map[time.Weekday]Window{
				time.Monday:    weekday,
				time.Tuesday:   weekday,
				time.Wednesday: weekday,
				time.Thursday:  weekday,
				time.Friday:    weekday,
				time.Saturday:  saturday,
			},
			DayMessage:      "general dentistry is not available on Sundays",
			HoursMessage:    "general dentistry hours are Monday to Friday 12:00 to 17:00, Saturday 12:00 to 15:00",
			IntervalMessage: "general dentistry appointments start at 00 or 40 on weekdays and on the hour on Saturdays",
		},
	}
}
