package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record visibility.
const (
	VisibilityPrivate = "PRIVATE"
	VisibilityShared  = "SHARED"
)

var ErrNotAppointmentProfessional = errors.New("appointment belongs to another professional")

type ClinicalRecord struct {
	ID             int64
	AppointmentID  int64
	PatientID      int64
	ProfessionalID int64
	RecordType     string
	Diagnosis      string
	Prescription   *string
	Observations   *string
	Attachments    json.RawMessage
	Visibility     string
	CreatedBy      *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const recordCols = "id, appointment_id, patient_id, professional_id, record_type, diagnosis, prescription, observations, attachments, visibility, created_by, created_at, updated_at"

func scanRecord(row pgx.Row, r *ClinicalRecord) error {
	return row.Scan(&r.ID, &r.AppointmentID, &r.PatientID, &r.ProfessionalID, &r.RecordType, &r.Diagnosis, &r.Prescription, &r.Observations, &r.Attachments, &r.Visibility, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
}

func RecordByID(ctx context.Context, db DBTX, id int64) (*ClinicalRecord, error) {
	var r ClinicalRecord
	err := scanRecord(db.QueryRow(ctx, `
		SELECT `+recordCols+` FROM clinical_records WHERE id = $1
	`, id), &r)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRecord creates the clinical record for an appointment. Patient and
// professional come from the appointment, not from the request; the author must
// be the appointment's professional. The appointment status is not checked:
// registrar o atendimento sempre conclui a consulta. Marks the appointment
// COMPLETED and writes the audit row in the same transaction.
func CreateRecord(ctx context.Context, pool *pgxpool.Pool, appointmentID, authorProfessionalID, actorUserID int64, recordType, diagnosis string, prescription, observations *string, attachments json.RawMessage, visibility, requestID, ip, userAgent string) (*ClinicalRecord, error) {
	var r ClinicalRecord
	err := InTx(ctx, pool, func(tx pgx.Tx) error {
		var patientID, professionalID int64
		err := tx.QueryRow(ctx, `
			SELECT patient_id, professional_id FROM appointments WHERE id = $1 FOR UPDATE
		`, appointmentID).Scan(&patientID, &professionalID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if professionalID != authorProfessionalID {
			return ErrNotAppointmentProfessional
		}
		err = scanRecord(tx.QueryRow(ctx, `
			INSERT INTO clinical_records (appointment_id, patient_id, professional_id, record_type, diagnosis, prescription, observations, attachments, visibility, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+recordCols+`
		`, appointmentID, patientID, professionalID, recordType, diagnosis, prescription, observations, attachments, visibility, actorUserID), &r)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE appointments SET status = 'COMPLETED', updated_at = now() WHERE id = $1
		`, appointmentID); err != nil {
			return err
		}
		return CreateAuditLog(ctx, tx, AuditEvent{
			UserID:       &actorUserID,
			Action:       AuditRecordCreated,
			ResourceType: "clinical_record",
			ResourceID:   &r.ID,
			RequestID:    requestID,
			IP:           ip,
			UserAgent:    userAgent,
			Details:      map[string]int64{"appointment_id": appointmentID, "patient_id": patientID},
		})
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRecord applies non-nil fields and writes the audit row in the same
// transaction. Ownership is checked by the caller before updating.
func UpdateRecord(ctx context.Context, pool *pgxpool.Pool, id, actorUserID int64, diagnosis, prescription, observations *string, attachments json.RawMessage, visibility *string, requestID, ip, userAgent string) (*ClinicalRecord, error) {
	var r ClinicalRecord
	err := InTx(ctx, pool, func(tx pgx.Tx) error {
		err := scanRecord(tx.QueryRow(ctx, `
			UPDATE clinical_records SET
				diagnosis = COALESCE($2, diagnosis),
				prescription = COALESCE($3, prescription),
				observations = COALESCE($4, observations),
				attachments = COALESCE($5, attachments),
				visibility = COALESCE($6, visibility),
				updated_at = now()
			WHERE id = $1
			RETURNING `+recordCols+`
		`, id, diagnosis, prescription, observations, attachments, visibility), &r)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		// A trilha guarda o conjunto de alterações pedido, não o estado final.
		changes := map[string]any{}
		if diagnosis != nil {
			changes["diagnosis"] = *diagnosis
		}
		if prescription != nil {
			changes["prescription"] = *prescription
		}
		if observations != nil {
			changes["observations"] = *observations
		}
		if attachments != nil {
			changes["attachments"] = attachments
		}
		if visibility != nil {
			changes["visibility"] = *visibility
		}
		return CreateAuditLog(ctx, tx, AuditEvent{
			UserID:       &actorUserID,
			Action:       AuditRecordUpdated,
			Details:      changes,
			ResourceType: "clinical_record",
			ResourceID:   &r.ID,
			RequestID:    requestID,
			IP:           ip,
			UserAgent:    userAgent,
		})
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordScope limits ListRecordsForPatient to what the caller may see.
type RecordScope struct {
	// OwnerProfessionalID > 0: only records authored by that professional.
	OwnerProfessionalID int64
	// SharedOnly: only SHARED records (patient reading their own history).
	SharedOnly bool
}

func ListRecordsForPatient(ctx context.Context, db DBTX, patientID int64, scope RecordScope, limit, offset int) ([]ClinicalRecord, int64, error) {
	where := " WHERE patient_id = $1"
	args := []any{patientID}
	if scope.OwnerProfessionalID > 0 {
		where += " AND professional_id = $2"
		args = append(args, scope.OwnerProfessionalID)
	}
	if scope.SharedOnly {
		where += " AND visibility = 'SHARED'"
	}

	var total int64
	if err := db.QueryRow(ctx, "SELECT count(*) FROM clinical_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitPos := len(args) + 1
	query := "SELECT " + recordCols + " FROM clinical_records" + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", limitPos, limitPos+1)
	args = append(args, limit, offset)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []ClinicalRecord
	for rows.Next() {
		var r ClinicalRecord
		if err := rows.Scan(&r.ID, &r.AppointmentID, &r.PatientID, &r.ProfessionalID, &r.RecordType, &r.Diagnosis, &r.Prescription, &r.Observations, &r.Attachments, &r.Visibility, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, r)
	}
	return list, total, rows.Err()
}

// PrescriptionView is the data needed to render the prescription document.
type PrescriptionView struct {
	RecordID         int64
	Prescription     string
	Diagnosis        string
	PatientName      string
	ProfessionalName string
	ProfessionalCRM  string
	Specialty        string
	ScheduledAt      time.Time
	CreatedAt        time.Time
}

func PrescriptionByRecordID(ctx context.Context, db DBTX, recordID int64) (*PrescriptionView, error) {
	var v PrescriptionView
	var prescription *string
	err := db.QueryRow(ctx, `
		SELECT r.id, r.prescription, r.diagnosis, p.full_name, pr.full_name, pr.crm, pr.specialty, a.scheduled_at, r.created_at
		FROM clinical_records r
		JOIN patients p ON p.id = r.patient_id
		JOIN professionals pr ON pr.id = r.professional_id
		JOIN appointments a ON a.id = r.appointment_id
		WHERE r.id = $1
	`, recordID).Scan(&v.RecordID, &prescription, &v.Diagnosis, &v.PatientName, &v.ProfessionalName, &v.ProfessionalCRM, &v.Specialty, &v.ScheduledAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if prescription != nil {
		v.Prescription = *prescription
	}
	return &v, nil
}
