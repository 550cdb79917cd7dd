//go:build integration

package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabiortecnologia/sghss/internal/testutil"
)

func openMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	pool, url := testutil.OpenPool(ctx)
	if pool == nil {
		if url == "" {
			t.Skip("DATABASE_URL not set")
		} else {
			t.Fatalf("cannot connect to %s", url)
		}
		return nil
	}
	if err := testutil.MustMigrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func createTestPatientAndProfessional(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (patientID, profID int64) {
	t.Helper()
	suffix := time.Now().UnixNano()
	err := pool.QueryRow(ctx, `
		INSERT INTO patients (full_name) VALUES ($1) RETURNING id
	`, fmt.Sprintf("Paciente Teste %d", suffix)).Scan(&patientID)
	if err != nil {
		t.Fatalf("insert patient: %v", err)
	}
	err = pool.QueryRow(ctx, `
		INSERT INTO professionals (full_name, specialty, crm) VALUES ($1, 'Clínica Geral', $2) RETURNING id
	`, fmt.Sprintf("Dr. Teste %d", suffix), fmt.Sprintf("CRM-%d", suffix%100000)).Scan(&profID)
	if err != nil {
		t.Fatalf("insert professional: %v", err)
	}
	return patientID, profID
}

func createTestUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ('Recepção Teste', $1, 'x', 'RECEPTIONIST') RETURNING id
	`, fmt.Sprintf("recepcao%d@teste.local", time.Now().UnixNano())).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func TestIntegration_BookAppointmentConflict(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slot := time.Now().Add(48 * time.Hour).Truncate(time.Minute).UTC()

	a1, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID)
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	if a1.Status != AppointmentScheduled {
		t.Errorf("expected SCHEDULED, got %s", a1.Status)
	}
	if a1.DurationMinutes != 30 {
		t.Errorf("expected duration 30, got %d", a1.DurationMinutes)
	}

	// Mesmo profissional, mesmo horário: conflito
	if _, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("expected ErrScheduleConflict, got %v", err)
	}

	// Cancelar libera o horário
	if _, _, err := CancelAppointment(ctx, pool, a1.ID); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	a2, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID)
	if err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
	if a2.ID == a1.ID {
		t.Error("rebook must create a new appointment")
	}
}

func TestIntegration_ConcurrentBookingSingleWinner(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slot := time.Now().Add(60 * time.Hour).Truncate(time.Minute).UTC()

	// Duas reservas simultâneas para o mesmo horário: o índice parcial garante
	// que só uma vence, mesmo quando as duas passam pelo pré-check.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	booked, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			booked++
		case errors.Is(err, ErrScheduleConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if booked != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one booking to win, got booked=%d conflicts=%d", booked, conflicts)
	}
}

func TestIntegration_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slot := time.Now().Add(72 * time.Hour).Truncate(time.Minute).UTC()
	a, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "EXAM", nil, userID)
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}
	wantPrior := AppointmentScheduled
	for i := 0; i < 2; i++ {
		got, prior, err := CancelAppointment(ctx, pool, a.ID)
		if err != nil {
			t.Fatalf("CancelAppointment #%d: %v", i+1, err)
		}
		if got.Status != AppointmentCancelled {
			t.Errorf("expected CANCELLED, got %s", got.Status)
		}
		if prior != wantPrior {
			t.Errorf("expected prior status %s, got %s", wantPrior, prior)
		}
		wantPrior = AppointmentCancelled
	}
	if _, _, err := CancelAppointment(ctx, pool, -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_RescheduleExcludesSelf(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slotA := time.Now().Add(96 * time.Hour).Truncate(time.Minute).UTC()
	slotB := slotA.Add(time.Hour)

	a, err := BookAppointment(ctx, pool, patientID, profID, slotA, 30, "THERAPY", nil, userID)
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	// Reagendar para o próprio horário não conflita consigo mesmo
	if _, err := RescheduleAppointment(ctx, pool, a.ID, slotA, nil, nil, nil); err != nil {
		t.Fatalf("reschedule to same slot: %v", err)
	}

	// Campos opcionais só mudam quando enviados
	newDuration := 45
	got, err := RescheduleAppointment(ctx, pool, a.ID, slotA, &newDuration, nil, nil)
	if err != nil {
		t.Fatalf("reschedule with duration: %v", err)
	}
	if got.DurationMinutes != 45 || got.Type != "THERAPY" {
		t.Errorf("expected duration 45 and type THERAPY, got %d/%s", got.DurationMinutes, got.Type)
	}

	b, err := BookAppointment(ctx, pool, patientID, profID, slotB, 30, "THERAPY", nil, userID)
	if err != nil {
		t.Fatalf("book slotB: %v", err)
	}
	// Reagendar sobre horário ocupado por outro: conflito
	if _, err := RescheduleAppointment(ctx, pool, a.ID, slotB, nil, nil, nil); !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("expected ErrScheduleConflict, got %v", err)
	}

	// Cancelado não pode ser reagendado
	if _, _, err := CancelAppointment(ctx, pool, b.ID); err != nil {
		t.Fatalf("cancel b: %v", err)
	}
	if _, err := RescheduleAppointment(ctx, pool, b.ID, slotA.Add(2*time.Hour), nil, nil, nil); !errors.Is(err, ErrAppointmentCancelled) {
		t.Fatalf("expected ErrAppointmentCancelled, got %v", err)
	}
}

func TestIntegration_CreateRecordCompletesAppointment(t *testing.T) {
	ctx := context.Background()
	pool := openMigratedPool(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	patientID, profID := createTestPatientAndProfessional(t, ctx, pool)
	userID := createTestUser(t, ctx, pool)
	slot := time.Now().Add(120 * time.Hour).Truncate(time.Minute).UTC()
	a, err := BookAppointment(ctx, pool, patientID, profID, slot, 30, "CONSULTATION", nil, userID)
	if err != nil {
		t.Fatalf("BookAppointment: %v", err)
	}

	// Outro profissional não pode registrar atendimento nesta consulta
	_, otherProf := createTestPatientAndProfessional(t, ctx, pool)
	if _, err := CreateRecord(ctx, pool, a.ID, otherProf, userID, "CONSULTATION", "dx", nil, nil, nil, VisibilityPrivate, "", "", ""); !errors.Is(err, ErrNotAppointmentProfessional) {
		t.Fatalf("expected ErrNotAppointmentProfessional, got %v", err)
	}

	r, err := CreateRecord(ctx, pool, a.ID, profID, userID, "CONSULTATION", "Hipertensão leve", nil, nil, nil, VisibilityShared, "", "", "")
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if r.PatientID != patientID || r.ProfessionalID != profID {
		t.Error("record must copy patient/professional from the appointment")
	}

	got, err := AppointmentByID(ctx, pool, a.ID)
	if err != nil {
		t.Fatalf("AppointmentByID: %v", err)
	}
	if got.Status != AppointmentCompleted {
		t.Errorf("expected COMPLETED after record, got %s", got.Status)
	}

	var auditCount int
	if err := pool.QueryRow(ctx, `
		SELECT count(*) FROM audit_logs WHERE action = 'RECORD_CREATED' AND resource_id = $1
	`, r.ID).Scan(&auditCount); err != nil {
		t.Fatalf("audit count: %v", err)
	}
	if auditCount != 1 {
		t.Errorf("expected 1 RECORD_CREATED audit row, got %d", auditCount)
	}
}
