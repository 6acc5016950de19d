package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_SlotUniqueConstraint(t *testing.T) {
	s := Schema()
	assert.Contains(t, s, "CONSTRAINT appointments_slot_unique UNIQUE (service_id, clinician_id, slot_date, slot_time)")
	assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS appointment_archive")
	assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS event_logs")
}
