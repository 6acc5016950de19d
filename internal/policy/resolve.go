package policy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	orthodonticsMarkers   = []string{"ortodonc", "orthodont"}
	generalDentistMarkers = []string{"odontolog", "dentist", "general"}
)

// fold lowercases and strips diacritics so "Odontóloga" matches "odontologa".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// CategoryForService maps a service name to its scheduling category.
func CategoryForService(name string) Category {
	if containsAny(fold(name), orthodonticsMarkers) {
		return CategoryOrthodontics
	}
	return CategoryGeneral
}

// RoleForTitle maps a clinician's free-text role to a Role.
func RoleForTitle(title string) Role {
	f := fold(title)
	switch {
	case containsAny(f, orthodonticsMarkers):
		return RoleOrthodontist
	case containsAny(f, generalDentistMarkers):
		return RoleGeneralDentist
	default:
		return RoleUnknown
	}
}
