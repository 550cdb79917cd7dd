//go:build integration

package repo

import (
	"context"
	"testing"
	"time"
)

func TestIntegration_UpdateRecordPartialMerge(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slot := time.Now().Add(144 * time.Hour).Truncate(time.Minute).UTC()
	a, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID)
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	presc := "Dipirona 500mg 8/8h"
	obs := "Retorno em 30 dias"
	r, err := CreateRecord(ctx, pool, a.ID, profID, userID, "CONSULTATION", "Enxaqueca", &presc, &obs, nil, VisibilityShared, "", "", "")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	// Atualizar só o diagnóstico não pode tocar nos demais campos
	newDx := "Enxaqueca crônica"
	got, err := UpdateRecord(ctx, pool, r.ID, userID, &newDx, nil, nil, nil, nil, "", "", "")
	if err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if got.Diagnosis != newDx {
		t.Errorf("expected diagnosis %q, got %q", newDx, got.Diagnosis)
	}
	if got.Prescription == nil || *got.Prescription != presc {
		t.Errorf("prescription must be unchanged, got %v", got.Prescription)
	}
	if got.Observations == nil || *got.Observations != obs {
		t.Errorf("observations must be unchanged, got %v", got.Observations)
	}
	if got.Visibility != VisibilityShared {
		t.Errorf("visibility must be unchanged, got %s", got.Visibility)
	}
	if got.RecordType != "CONSULTATION" {
		t.Errorf("record_type must be unchanged, got %s", got.RecordType)
	}

	// E o inverso: mexer só na visibilidade preserva o texto clínico
	priv := VisibilityPrivate
	got, err = UpdateRecord(ctx, pool, r.ID, userID, nil, nil, nil, nil, &priv, "", "", "")
	if err != nil {
		t.Fatalf("UpdateRecord visibility: %v", err)
	}
	if got.Diagnosis != newDx || got.Prescription == nil || *got.Prescription != presc {
		t.Error("clinical fields must survive a visibility-only update")
	}
	if got.Visibility != VisibilityPrivate {
		t.Errorf("expected PRIVATE, got %s", got.Visibility)
	}
}

func TestIntegration_CreateRecordOnCancelledAppointment(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slot := time.Now().Add(168 * time.Hour).Truncate(time.Minute).UTC()
	a, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID)
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if _, _, err := CancelAppointment(ctx, pool, a.ID); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	// Registrar o atendimento não barra consulta cancelada: o registro vale e
	// a consulta passa a COMPLETED.
	r, err := CreateRecord(ctx, pool, a.ID, profID, userID, "CONSULTATION", "Atendimento realizado fora da agenda", nil, nil, nil, VisibilityPrivate, "", "", "")
	if err != nil {
		t.Fatalf("CreateRecord on cancelled appointment: %v", err)
	}
	if r.PatientID != patientID {
		t.Error("record must copy the patient from the appointment")
	}
	got, err := AppointmentByID(ctx, pool, a.ID)
	if err != nil {
		t.Fatalf("AppointmentByID: %v", err)
	}
	if got.Status != AppointmentCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
}
