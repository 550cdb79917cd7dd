package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Professional struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    *int64
	FullName  string
	Specialty string
	CRM       string `gorm:"column:crm"`
	Phone     *string
	Email     *string
	Active    bool `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

func (Professional) TableName() string { return "professionals" }

func CreateProfessional(ctx context.Context, db *gorm.DB, p *Professional) error {
	err := db.WithContext(ctx).Create(p).Error
	if err != nil && isGormUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func ProfessionalByID(ctx context.Context, db *gorm.DB, id int64) (*Professional, error) {
	var p Professional
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfessionalByUserID resolves the professional profile linked to a login,
// for PROFESSIONAL role scoping (record ownership).
func ProfessionalByUserID(ctx context.Context, db *gorm.DB, userID int64) (*Professional, error) {
	var p Professional
	err := db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func ListProfessionals(ctx context.Context, db *gorm.DB, specialty string, onlyActive bool, limit, offset int) ([]Professional, int64, error) {
	q := db.WithContext(ctx).Model(&Professional{})
	if specialty != "" {
		q = q.Where("specialty = ?", specialty)
	}
	if onlyActive {
		q = q.Where("active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []Professional
	err := q.Order("full_name").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

func UpdateProfessional(ctx context.Context, db *gorm.DB, id int64, fullName, specialty, phone, email *string) (*Professional, error) {
	updates := map[string]interface{}{"updated_at": gorm.Expr("now()")}
	if fullName != nil {
		updates["full_name"] = *fullName
	}
	if specialty != nil {
		updates["specialty"] = *specialty
	}
	if phone != nil {
		updates["phone"] = *phone
	}
	if email != nil {
		updates["email"] = *email
	}
	res := db.WithContext(ctx).Model(&Professional{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return ProfessionalByID(ctx, db, id)
}

// SetProfessionalActive deactivates or reactivates the professional.
// Inactive professionals cannot receive new appointments; existing ones stand.
func SetProfessionalActive(ctx context.Context, db *gorm.DB, id int64, active bool) error {
	res := db.WithContext(ctx).Model(&Professional{}).Where("id = ?", id).
		Updates(map[string]interface{}{"active": active, "updated_at": gorm.Expr("now()")})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
