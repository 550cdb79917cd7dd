package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
)

type Patient struct {
	ID            int64 `gorm:"primaryKey"`
	UserID        *int64
	FullName      string
	CPFEncrypted  []byte  `gorm:"column:cpf_encrypted"`
	CPFNonce      []byte  `gorm:"column:cpf_nonce"`
	CPFKeyVersion *string `gorm:"column:cpf_key_version"`
	CPFHash       *string `gorm:"column:cpf_hash"`
	BirthDate     *time.Time
	Phone         *string
	Email         *string
	Address       *string
	Anonymized    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt
}

func (Patient) TableName() string { return "patients" }

func CreatePatient(ctx context.Context, db *gorm.DB, p *Patient) error {
	err := db.WithContext(ctx).Create(p).Error
	if err != nil && isGormUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func PatientByID(ctx context.Context, db *gorm.DB, id int64) (*Patient, error) {
	var p Patient
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PatientByUserID resolves the patient profile linked to a login, for PATIENT role scoping.
func PatientByUserID(ctx context.Context, db *gorm.DB, userID int64) (*Patient, error) {
	var p Patient
	err := db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func PatientByCPFHash(ctx context.Context, db *gorm.DB, cpfHash string) (*Patient, error) {
	var p Patient
	err := db.WithContext(ctx).First(&p, "cpf_hash = ?", cpfHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func ListPatients(ctx context.Context, db *gorm.DB, limit, offset int) ([]Patient, int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&Patient{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []Patient
	err := q.Order("full_name").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// UpdatePatient applies non-nil fields. CPF is immutable after registration.
func UpdatePatient(ctx context.Context, db *gorm.DB, id int64, fullName, phone, email, address *string, birthDate *time.Time) (*Patient, error) {
	updates := map[string]interface{}{"updated_at": gorm.Expr("now()")}
	if fullName != nil {
		updates["full_name"] = *fullName
	}
	if phone != nil {
		updates["phone"] = *phone
	}
	if email != nil {
		updates["email"] = *email
	}
	if address != nil {
		updates["address"] = *address
	}
	if birthDate != nil {
		updates["birth_date"] = *birthDate
	}
	res := db.WithContext(ctx).Model(&Patient{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return PatientByID(ctx, db, id)
}

// AnonymizePatient blanks the patient's PII, deactivates the linked login and
// writes the audit row, all in one transaction. The clinical history stays
// linked to the (now anonymous) patient id.
func AnonymizePatient(ctx context.Context, pool *pgxpool.Pool, patientID int64, actorUserID int64, requestID, ip, userAgent string) error {
	return InTx(ctx, pool, func(tx pgx.Tx) error {
		var userID *int64
		var anonymized bool
		err := tx.QueryRow(ctx, `
			SELECT user_id, anonymized FROM patients WHERE id = $1 AND deleted_at IS NULL FOR UPDATE
		`, patientID).Scan(&userID, &anonymized)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if anonymized {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE patients SET
				full_name = 'ANONIMIZADO',
				cpf_encrypted = NULL, cpf_nonce = NULL, cpf_key_version = NULL, cpf_hash = NULL,
				birth_date = NULL, phone = NULL, email = NULL, address = NULL,
				anonymized = true, updated_at = now()
			WHERE id = $1
		`, patientID)
		if err != nil {
			return err
		}
		if userID != nil {
			if err := DeactivateUser(ctx, tx, *userID); err != nil {
				return err
			}
		}
		return CreateAuditLog(ctx, tx, AuditEvent{
			UserID:       &actorUserID,
			Action:       AuditPatientAnonymized,
			ResourceType: "patient",
			ResourceID:   &patientID,
			RequestID:    requestID,
			IP:           ip,
			UserAgent:    userAgent,
		})
	})
}

func isGormUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err, "")
}
