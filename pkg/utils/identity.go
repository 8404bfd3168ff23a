package utils

import (
	"strings"
	"time"
)

const MinimumAge = 18

// NormalizeEmail converts an email to the form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AgeOn returns the age in whole years on the given day. A birthday later in the
// year than today has not been reached yet.
func AgeOn(dob, today time.Time) int {
	dob = dob.UTC()
	today = today.UTC()

	age := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		age--
	}
	return age
}

func IsAdult(dob, today time.Time) bool {
	return AgeOn(dob, today) >= MinimumAge
}
