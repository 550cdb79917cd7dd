package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fabiortecnologia/sghss/internal/repo"
)

type appointmentResponse struct {
	ID              int64   `json:"id"`
	PatientID       int64   `json:"patient_id"`
	ProfessionalID  int64   `json:"professional_id"`
	ScheduledAt     string  `json:"scheduled_at"`
	ScheduledAtBR   string  `json:"scheduled_at_br"`
	DurationMinutes int     `json:"duration_minutes"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	Notes           *string `json:"notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func toAppointmentResponse(a *repo.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		ProfessionalID:  a.ProfessionalID,
		ScheduledAt:     a.ScheduledAt.UTC().Format(time.RFC3339),
		ScheduledAtBR:   FormatDateTimeBR(a.ScheduledAt),
		DurationMinutes: a.DurationMinutes,
		Type:            a.Type,
		Status:          a.Status,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// BookAppointment cria um agendamento (ADMIN/RECEPTIONIST via rota).
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID       int64   `json:"patient_id"`
		ProfessionalID  int64   `json:"professional_id"`
		ScheduledAt     string  `json:"scheduled_at"`
		DurationMinutes *int    `json:"duration_minutes"`
		Type            string  `json:"type"`
		Notes           *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID <= 0 || req.ProfessionalID <= 0 || strings.TrimSpace(req.ScheduledAt) == "" {
		http.Error(w, `{"error":"patient_id, professional_id e scheduled_at são obrigatórios"}`, http.StatusBadRequest)
		return
	}
	typ := strings.ToUpper(strings.TrimSpace(req.Type))
	if typ == "" {
		typ = "CONSULTATION"
	}
	if !ValidAppointmentType(typ) {
		http.Error(w, `{"error":"tipo de consulta inválido"}`, http.StatusBadRequest)
		return
	}
	duration := 30
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			http.Error(w, `{"error":"duration_minutes inválido"}`, http.StatusBadRequest)
			return
		}
		duration = *req.DurationMinutes
	}
	scheduledAt, err := ParseScheduleDateTime(req.ScheduledAt)
	if err != nil {
		http.Error(w, `{"error":"data/hora inválida (use DD/MM/YYYY HH:mm:ss ou ISO 8601)"}`, http.StatusBadRequest)
		return
	}
	actorID := h.actorFrom(r).UserID
	a, err := repo.BookAppointment(r.Context(), h.Pool, req.PatientID, req.ProfessionalID, scheduledAt, duration, typ, req.Notes, actorID)
	if err != nil {
		repoError(w, "appointments", err)
		return
	}
	h.audit(r, repo.AuditEvent{
		UserID:       &actorID,
		Action:       repo.AuditAppointmentBooked,
		ResourceType: "appointment",
		ResourceID:   &a.ID,
		Details:      map[string]interface{}{"professional_id": a.ProfessionalID, "scheduled_at": a.ScheduledAt.UTC().Format(time.RFC3339)},
	})
	writeJSON(w, http.StatusCreated, toAppointmentResponse(a))
}

// CancelAppointment cancela (idempotente: cancelar já cancelada responde 200).
// O corpo é opcional e pode trazer o motivo, que vai para a auditoria.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	a, prior, err := repo.CancelAppointment(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "appointments", err)
		return
	}
	details := map[string]interface{}{
		"previous_status": prior,
		"new_status":      a.Status,
		"scheduled_at":    a.ScheduledAt.UTC().Format(time.RFC3339),
	}
	if strings.TrimSpace(req.Reason) != "" {
		details["reason"] = req.Reason
	}
	actorID := h.actorFrom(r).UserID
	h.audit(r, repo.AuditEvent{
		UserID:       &actorID,
		Action:       repo.AuditAppointmentCancelled,
		ResourceType: "appointment",
		ResourceID:   &a.ID,
		Details:      details,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "consulta cancelada",
		"appointment": toAppointmentResponse(a),
	})
}

// RescheduleAppointment move o agendamento para novo horário.
func (h *Handler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		ScheduledAt     string  `json:"scheduled_at"`
		DurationMinutes *int    `json:"duration_minutes"`
		Type            *string `json:"type"`
		Notes           *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	newTime, err := ParseScheduleDateTime(req.ScheduledAt)
	if err != nil {
		http.Error(w, `{"error":"data/hora inválida (use DD/MM/YYYY HH:mm:ss ou ISO 8601)"}`, http.StatusBadRequest)
		return
	}
	if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
		http.Error(w, `{"error":"duration_minutes inválido"}`, http.StatusBadRequest)
		return
	}
	if req.Type != nil {
		t := strings.ToUpper(strings.TrimSpace(*req.Type))
		if !ValidAppointmentType(t) {
			http.Error(w, `{"error":"tipo de consulta inválido"}`, http.StatusBadRequest)
			return
		}
		req.Type = &t
	}
	a, err := repo.RescheduleAppointment(r.Context(), h.Pool, id, newTime, req.DurationMinutes, req.Type, req.Notes)
	if err != nil {
		repoError(w, "appointments", err)
		return
	}
	actorID := h.actorFrom(r).UserID
	h.audit(r, repo.AuditEvent{
		UserID:       &actorID,
		Action:       repo.AuditAppointmentRescheduled,
		ResourceType: "appointment",
		ResourceID:   &a.ID,
		Details:      map[string]string{"scheduled_at": a.ScheduledAt.UTC().Format(time.RFC3339)},
	})
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

// ListAppointments lista com filtros; o escopo por papel é aplicado antes dos
// filtros do cliente (paciente não lista agenda alheia nem pedindo).
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repo.AppointmentFilter
	if s := q.Get("patient_id"); s != "" {
		f.PatientID, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := q.Get("professional_id"); s != "" {
		f.ProfessionalID, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := q.Get("status"); s != "" {
		st := strings.ToUpper(s)
		if !ValidAppointmentStatus(st) {
			http.Error(w, `{"error":"status inválido"}`, http.StatusBadRequest)
			return
		}
		f.Status = st
	}
	if s := q.Get("from"); s != "" {
		t, err := ParseScheduleDateTime(s)
		if err != nil {
			http.Error(w, `{"error":"from inválido"}`, http.StatusBadRequest)
			return
		}
		f.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := ParseScheduleDateTime(s)
		if err != nil {
			http.Error(w, `{"error":"to inválido"}`, http.StatusBadRequest)
			return
		}
		f.To = t
	}

	actor := h.actorFrom(r)
	f, d := AppointmentListScope(actor, f)
	if !d.Allow {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	limit, offset := ParseLimitOffset(r)
	list, total, err := repo.ListAppointments(r.Context(), h.Pool, f, limit, offset)
	if err != nil {
		repoError(w, "appointments", err)
		return
	}
	out := make([]appointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, pagedResponse{Data: out, Total: total, Limit: limit, Offset: offset})
}

// GetAppointment retorna um agendamento, respeitando o escopo do papel.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	a, err := repo.AppointmentByID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "appointments", err)
		return
	}
	if d := CanViewAppointment(h.actorFrom(r), a); !d.Allow {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}
