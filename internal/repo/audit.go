package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Audit actions recorded by the API.
const (
	AuditLoginSuccess           = "LOGIN_SUCCESS"
	AuditLoginFailed            = "LOGIN_FAILED"
	AuditAppointmentBooked      = "APPOINTMENT_BOOKED"
	AuditAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	AuditAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	AuditRecordCreated          = "RECORD_CREATED"
	AuditRecordUpdated          = "RECORD_UPDATED"
	AuditPatientAnonymized      = "PATIENT_ANONYMIZED"
)

type AuditEvent struct {
	UserID       *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	RequestID    string
	IP           string
	UserAgent    string
	Details      interface{}
}

type AuditLog struct {
	ID           int64       `json:"id"`
	UserID       *int64      `json:"user_id"`
	Action       string      `json:"action"`
	ResourceType *string     `json:"resource_type"`
	ResourceID   *int64      `json:"resource_id"`
	RequestID    *string     `json:"request_id"`
	IP           *string     `json:"ip"`
	UserAgent    *string     `json:"user_agent"`
	Details      interface{} `json:"details"`
	CreatedAt    time.Time   `json:"created_at"`
}

func CreateAuditLog(ctx context.Context, db DBTX, ev AuditEvent) error {
	var details []byte
	if ev.Details != nil {
		var marshalErr error
		details, marshalErr = json.Marshal(ev.Details)
		if marshalErr != nil {
			return marshalErr
		}
	}
	_, err := db.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, resource_type, resource_id, request_id, ip, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.UserID, ev.Action, nullIfEmptyText(ev.ResourceType), ev.ResourceID,
		nullIfEmptyText(ev.RequestID), nullIfEmptyText(ev.IP), nullIfEmptyText(ev.UserAgent), details)
	return err
}

func nullIfEmptyText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AuditLogFilter filters the audit listing. Zero values mean "no filter".
type AuditLogFilter struct {
	UserID int64
	Action string
	Since  time.Time
	Until  time.Time
}

func ListAuditLogs(ctx context.Context, db DBTX, f AuditLogFilter, limit, offset int) ([]AuditLog, int64, error) {
	where := " WHERE 1=1"
	args := []any{}
	n := 0
	if f.UserID != 0 {
		n++
		where += fmt.Sprintf(" AND user_id = $%d", n)
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		n++
		where += fmt.Sprintf(" AND action = $%d", n)
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		n++
		where += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		n++
		where += fmt.Sprintf(" AND created_at <= $%d", n)
		args = append(args, f.Until)
	}

	var total int64
	if err := db.QueryRow(ctx, "SELECT count(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, action, resource_type, resource_id, request_id, ip, user_agent, details, created_at
		FROM audit_logs` + where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, limit, offset)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []AuditLog
	for rows.Next() {
		var l AuditLog
		var details []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &l.RequestID, &l.IP, &l.UserAgent, &details, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(details) > 0 {
			var v interface{}
			if err := json.Unmarshal(details, &v); err == nil {
				l.Details = v
			}
		}
		list = append(list, l)
	}
	return list, total, rows.Err()
}
