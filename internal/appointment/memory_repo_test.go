package appointment

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo is an in-memory Repository with the same slot uniqueness rule
// as the database constraint.
type memoryRepo struct {
	mu sync.Mutex

	services   map[uuid.UUID]ClinicService
	clinicians map[uuid.UUID]Clinician
	rooms      map[uuid.UUID]Room

	appointments map[uuid.UUID]Appointment
	archive      []ArchivedAppointment
	events       []EventLog

	// hooks for failure injection
	insertDelay time.Duration
	deleteErr   map[uuid.UUID]error
	archiveErr  error
	eventErr    error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		services:     map[uuid.UUID]ClinicService{},
		clinicians:   map[uuid.UUID]Clinician{},
		rooms:        map[uuid.UUID]Room{},
		appointments: map[uuid.UUID]Appointment{},
		deleteErr:    map[uuid.UUID]error{},
	}
}

func (m *memoryRepo) addService(name string, active bool) ClinicService {
	s := ClinicService{ID: uuid.New(), Name: name, Active: active}
	m.services[s.ID] = s
	return s
}

func (m *memoryRepo) addClinician(role string) Clinician {
	c := Clinician{ID: uuid.New(), GivenName: "Ana", FamilyName: "Rojas", Role: role}
	m.clinicians[c.ID] = c
	return c
}

func (m *memoryRepo) addRoom(name string) Room {
	r := Room{ID: uuid.New(), Name: name}
	m.rooms[r.ID] = r
	return r
}

func sameSlot(a, b Slot) bool {
	return a.ServiceID == b.ServiceID &&
		a.ClinicianID == b.ClinicianID &&
		a.Date.Equal(b.Date) &&
		a.Time == b.Time
}

func (m *memoryRepo) slotTakenLocked(slot Slot, excludeID uuid.UUID) bool {
	for id, a := range m.appointments {
		if id != excludeID && sameSlot(a.Slot(), slot) {
			return true
		}
	}
	return false
}

func (m *memoryRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*ClinicService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (m *memoryRepo) GetClinicianByID(_ context.Context, id uuid.UUID) (*Clinician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clinicians[id]
	if !ok {
		return nil, ErrClinicianNotFound
	}
	return &c, nil
}

func (m *memoryRepo) GetRoomByID(_ context.Context, id uuid.UUID) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &r, nil
}

func (m *memoryRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memoryRepo) ListAppointments(_ context.Context, filter ListFilter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if filter.ClinicianID != nil && a.ClinicianID != *filter.ClinicianID {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Appointment) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return out, nil
}

func (m *memoryRepo) ListArchive(_ context.Context, appointmentID uuid.UUID) ([]ArchivedAppointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ArchivedAppointment
	for _, rec := range m.archive {
		if rec.AppointmentID == appointmentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) SlotTaken(_ context.Context, slot Slot, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotTakenLocked(slot, excludeID), nil
}

func (m *memoryRepo) InsertAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	if m.insertDelay > 0 {
		time.Sleep(m.insertDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slotTakenLocked(a.Slot(), uuid.Nil) {
		return nil, ErrSlotAlreadyBooked
	}
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *memoryRepo) UpdateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if stored.Status != StatusPending {
		return nil, ErrAlreadyCompleted
	}
	if m.slotTakenLocked(a.Slot(), a.ID) {
		return nil, ErrSlotAlreadyBooked
	}
	a.Status = stored.Status
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *memoryRepo) CompleteAppointment(_ context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != StatusPending {
		return nil, ErrAlreadyCompleted
	}
	// rollback: nothing is written when the archive insert fails
	if m.archiveErr != nil {
		return nil, m.archiveErr
	}
	a.Status = StatusCompleted
	a.UpdatedAt = at
	m.appointments[id] = a
	m.archive = append(m.archive, ArchivedAppointment{
		ID:            uuid.New(),
		AppointmentID: a.ID,
		Appointment:   a,
		ArchivedAt:    at,
	})
	return &a, nil
}

func (m *memoryRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *memoryRepo) FindCompletedOnOrBefore(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusCompleted && !a.Date.After(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) DeleteArchivedCompleted(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return false, err
	}
	a, ok := m.appointments[id]
	if !ok || a.Status != StatusCompleted {
		return false, nil
	}
	archived := slices.ContainsFunc(m.archive, func(rec ArchivedAppointment) bool {
		return rec.AppointmentID == id
	})
	if !archived {
		return false, nil
	}
	delete(m.appointments, id)
	return true, nil
}

func (m *memoryRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventErr != nil {
		return m.eventErr
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.EventType)
	}
	return out
}

var errStoreDown = errors.New("store unavailable")
