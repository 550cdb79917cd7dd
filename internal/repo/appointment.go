package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment statuses.
const (
	AppointmentScheduled = "SCHEDULED"
	AppointmentCancelled = "CANCELLED"
	AppointmentCompleted = "COMPLETED"
)

var (
	ErrAppointmentCancelled = errors.New("appointment is cancelled")
	ErrAppointmentCompleted = errors.New("appointment is completed")
)

type Appointment struct {
	ID              int64
	PatientID       int64
	ProfessionalID  int64
	ScheduledAt     time.Time
	DurationMinutes int
	Type            string
	Status          string
	Notes           *string
	CreatedBy       *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func scanAppointment(row pgx.Row, a *Appointment) error {
	return row.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.ScheduledAt, &a.DurationMinutes, &a.Type, &a.Status, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
}

const appointmentCols = "id, patient_id, professional_id, scheduled_at, duration_minutes, type, status, notes, created_by, created_at, updated_at"

func AppointmentByID(ctx context.Context, db DBTX, id int64) (*Appointment, error) {
	var a Appointment
	err := scanAppointment(db.QueryRow(ctx, `
		SELECT `+appointmentCols+` FROM appointments WHERE id = $1
	`, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// BookAppointment creates an appointment inside a transaction. The professional
// cannot have another non-cancelled appointment at the same scheduled_at: the
// explicit check gives a clean error, and the partial unique index on
// (professional_id, scheduled_at) WHERE status <> 'CANCELLED' closes the race
// between concurrent bookings.
func BookAppointment(ctx context.Context, pool *pgxpool.Pool, patientID, professionalID int64, scheduledAt time.Time, durationMinutes int, typ string, notes *string, createdBy int64) (*Appointment, error) {
	var a Appointment
	err := InTx(ctx, pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL AND NOT anonymized)
		`, patientID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPatientInvalid
		}
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM professionals WHERE id = $1 AND deleted_at IS NULL AND active)
		`, professionalID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProfessionalInvalid
		}
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE professional_id = $1 AND scheduled_at = $2 AND status <> 'CANCELLED'
			)
		`, professionalID, scheduledAt).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrScheduleConflict
		}
		return scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (patient_id, professional_id, scheduled_at, duration_minutes, type, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+appointmentCols+`
		`, patientID, professionalID, scheduledAt, durationMinutes, typ, notes, createdBy), &a)
	})
	if err != nil {
		if isUniqueViolation(err, "uniq_appointments_professional_slot") {
			return nil, ErrScheduleConflict
		}
		return nil, err
	}
	return &a, nil
}

// CancelAppointment marks the appointment as CANCELLED and returns it together
// with the status it had before. Cancelling an already cancelled appointment is
// a no-op that still succeeds.
func CancelAppointment(ctx context.Context, pool *pgxpool.Pool, id int64) (*Appointment, string, error) {
	var a Appointment
	var prior string
	err := InTx(ctx, pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT status FROM appointments WHERE id = $1 FOR UPDATE
		`, id).Scan(&prior)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments SET status = 'CANCELLED', updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentCols+`
		`, id), &a)
	})
	if err != nil {
		return nil, "", err
	}
	return &a, prior, nil
}

// RescheduleAppointment moves the appointment to newTime and applies the other
// fields only when supplied (notes aceita vazio para limpar). The conflict
// check excludes the appointment itself, so "rescheduling" to the same slot
// works. Cancelled and completed appointments cannot be rescheduled.
func RescheduleAppointment(ctx context.Context, pool *pgxpool.Pool, id int64, newTime time.Time, durationMinutes *int, typ, notes *string) (*Appointment, error) {
	var a Appointment
	err := InTx(ctx, pool, func(tx pgx.Tx) error {
		var status string
		var professionalID int64
		err := tx.QueryRow(ctx, `
			SELECT status, professional_id FROM appointments WHERE id = $1 FOR UPDATE
		`, id).Scan(&status, &professionalID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status == AppointmentCancelled {
			return ErrAppointmentCancelled
		}
		if status == AppointmentCompleted {
			return ErrAppointmentCompleted
		}
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE professional_id = $1 AND scheduled_at = $2 AND status <> 'CANCELLED' AND id <> $3
			)
		`, professionalID, newTime, id).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrScheduleConflict
		}
		return scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments SET
				scheduled_at = $1,
				duration_minutes = COALESCE($2, duration_minutes),
				type = COALESCE($3, type),
				notes = CASE WHEN $4 THEN $5 ELSE notes END,
				updated_at = now()
			WHERE id = $6
			RETURNING `+appointmentCols+`
		`, newTime, durationMinutes, typ, notes != nil, notes, id), &a)
	})
	if err != nil {
		if isUniqueViolation(err, "uniq_appointments_professional_slot") {
			return nil, ErrScheduleConflict
		}
		return nil, err
	}
	return &a, nil
}

// AppointmentFilter filters the listing. Zero values mean "no filter".
type AppointmentFilter struct {
	PatientID      int64
	ProfessionalID int64
	Status         string
	From           time.Time
	To             time.Time
}

func ListAppointments(ctx context.Context, db DBTX, f AppointmentFilter, limit, offset int) ([]Appointment, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	n := 0
	if f.PatientID != 0 {
		n++
		where += fmt.Sprintf(" AND patient_id = $%d", n)
		args = append(args, f.PatientID)
	}
	if f.ProfessionalID != 0 {
		n++
		where += fmt.Sprintf(" AND professional_id = $%d", n)
		args = append(args, f.ProfessionalID)
	}
	if f.Status != "" {
		n++
		where += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		n++
		where += fmt.Sprintf(" AND scheduled_at >= $%d", n)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		n++
		where += fmt.Sprintf(" AND scheduled_at <= $%d", n)
		args = append(args, f.To)
	}

	var total int64
	if err := db.QueryRow(ctx, "SELECT count(*) FROM appointments"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + appointmentCols + " FROM appointments" + where +
		fmt.Sprintf(" ORDER BY scheduled_at, id LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, limit, offset)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.ScheduledAt, &a.DurationMinutes, &a.Type, &a.Status, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	return list, total, rows.Err()
}
