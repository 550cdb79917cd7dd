package api

import (
	"testing"
	"time"
)

func TestParseScheduleDateTime(t *testing.T) {
	// 25/12/2025 14:30:00 em Brasília = 17:30 UTC
	got, err := ParseScheduleDateTime("25/12/2025 14:30:00")
	if err != nil {
		t.Fatalf("BR format: %v", err)
	}
	want := time.Date(2025, 12, 25, 17, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("BR format: got %v, want %v", got, want)
	}

	// Sem segundos
	got, err = ParseScheduleDateTime("25/12/2025 14:30")
	if err != nil {
		t.Fatalf("BR format no seconds: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("BR no seconds: got %v, want %v", got, want)
	}

	// ISO com offset: mesmo instante
	got, err = ParseScheduleDateTime("2025-12-25T14:30:00-03:00")
	if err != nil {
		t.Fatalf("RFC3339: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("RFC3339: got %v, want %v", got, want)
	}

	// ISO sem offset é lido como UTC
	got, err = ParseScheduleDateTime("2025-12-25T17:30:00")
	if err != nil {
		t.Fatalf("ISO naive: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("ISO naive: got %v, want %v", got, want)
	}

	for _, bad := range []string{"", "amanhã", "25-12-2025 14:30", "32/01/2025 10:00"} {
		if _, err := ParseScheduleDateTime(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestFormatDateTimeBR(t *testing.T) {
	utc := time.Date(2025, 12, 25, 17, 30, 0, 0, time.UTC)
	if got := FormatDateTimeBR(utc); got != "25/12/2025 14:30" {
		t.Errorf("got %q", got)
	}
}

func TestValidateCRM(t *testing.T) {
	for _, ok := range []string{"CRM-12345", "CRM-1234", "CRM-123456"} {
		if err := ValidateCRM(ok); err != nil {
			t.Errorf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "CRM12345", "crm-12345", "CRM-123", "CRM-1234567", "CRM-12a45"} {
		if err := ValidateCRM(bad); err == nil {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	for _, ok := range []string{"11987654321", "1134567890", "(11) 98765-4321"} {
		if err := ValidatePhone(ok); err != nil {
			t.Errorf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "123", "123456789012"} {
		if err := ValidatePhone(bad); err == nil {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("ana@hospital.com.br"); err != nil {
		t.Errorf("valid email rejected: %v", err)
	}
	for _, bad := range []string{"", "ana", "ana@", "@hospital.com", "ana hospital@x.com"} {
		if err := ValidateEmail(bad); err == nil {
			t.Errorf("%q should be invalid", bad)
		}
	}
}

func TestEnumValidators(t *testing.T) {
	if !ValidAppointmentType("CONSULTATION") || ValidAppointmentType("SURGERY") {
		t.Error("appointment type validator wrong")
	}
	if !ValidAppointmentStatus("CANCELLED") || ValidAppointmentStatus("PENDING") {
		t.Error("status validator wrong")
	}
	if !ValidVisibility("SHARED") || ValidVisibility("PUBLIC") {
		t.Error("visibility validator wrong")
	}
}
