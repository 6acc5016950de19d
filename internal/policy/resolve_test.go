package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryForService(t *testing.T) {
	cases := map[string]Category{
		"Ortodoncia":             CategoryOrthodontics,
		"ORTODONCIA preventiva":  CategoryOrthodontics,
		"Orthodontic adjustment": CategoryOrthodontics,
		"Limpieza dental":        CategoryGeneral,
		"Resina":                 CategoryGeneral,
		"":                       CategoryGeneral,
	}
	for name, want := range cases {
		assert.Equal(t, want, CategoryForService(name), name)
	}
}

func TestRoleForTitle(t *testing.T) {
	cases := map[string]Role{
		"Ortodoncista":       RoleOrthodontist,
		"Doctora Ortodoncia": RoleOrthodontist,
		"Odontóloga general": RoleGeneralDentist,
		"odontologa":         RoleGeneralDentist,
		"General dentist":    RoleGeneralDentist,
		"Recepcionista":      RoleUnknown,
		"":                   RoleUnknown,
	}
	for title, want := range cases {
		assert.Equal(t, want, RoleForTitle(title), title)
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:40")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 40}, c)
	assert.Equal(t, "09:40", c.String())

	for _, bad := range []string{"9:40", "24:00", "12:60", "12-00", "", "12:00:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("COT", -5*3600)

	d, err := ParseDate("2025-04-10", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, d.Weekday())
	assert.Equal(t, 0, d.Hour())

	_, err = ParseDate("10/04/2025", loc)
	assert.Error(t, err)
}
