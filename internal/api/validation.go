package api

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidCRM      = errors.New("invalid crm")
	ErrInvalidPhone    = errors.New("invalid phone")
	ErrInvalidDateTime = errors.New("invalid datetime")
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	crmRegex   = regexp.MustCompile(`^CRM-\d{4,6}$`)
)

// brazilTZ: datas brasileiras sem offset são interpretadas em UTC-03:00.
var brazilTZ = time.FixedZone("-03:00", -3*60*60)

// ParseScheduleDateTime accepts "DD/MM/YYYY HH:mm[:ss]" (interpreted at
// UTC-03:00) or RFC3339 / "2006-01-02T15:04:05". The result is normalized to
// UTC so equal instants written in different formats compare equal.
func ParseScheduleDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDateTime
	}
	for _, layout := range []string{"02/01/2006 15:04:05", "02/01/2006 15:04"} {
		if t, err := time.ParseInLocation(layout, s, brazilTZ); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDateTime
}

// FormatDateTimeBR formats an instant as "DD/MM/YYYY HH:mm" in UTC-03:00.
func FormatDateTimeBR(t time.Time) string {
	return t.In(brazilTZ).Format("02/01/2006 15:04")
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateCRM: formato CRM-12345 (4 a 6 dígitos).
func ValidateCRM(crm string) error {
	if !crmRegex.MatchString(strings.TrimSpace(crm)) {
		return ErrInvalidCRM
	}
	return nil
}

// ValidatePhone: 10 ou 11 dígitos (DDD + número), ignorando máscara.
func ValidatePhone(phone string) error {
	digits := onlyDigits(phone)
	if len(digits) < 10 || len(digits) > 11 {
		return ErrInvalidPhone
	}
	return nil
}

func ValidAppointmentType(t string) bool {
	switch t {
	case "CONSULTATION", "FOLLOWUP", "EXAM", "THERAPY", "PROCEDURE":
		return true
	}
	return false
}

func ValidAppointmentStatus(s string) bool {
	switch s {
	case "SCHEDULED", "CANCELLED", "COMPLETED":
		return true
	}
	return false
}

func ValidVisibility(v string) bool {
	return v == "PRIVATE" || v == "SHARED"
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
