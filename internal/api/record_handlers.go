package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/pdf"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

type recordResponse struct {
	ID             int64           `json:"id"`
	AppointmentID  int64           `json:"appointment_id"`
	PatientID      int64           `json:"patient_id"`
	ProfessionalID int64           `json:"professional_id"`
	RecordType     string          `json:"record_type"`
	Diagnosis      string          `json:"diagnosis"`
	Prescription   *string         `json:"prescription,omitempty"`
	Observations   *string         `json:"observations,omitempty"`
	Attachments    json.RawMessage `json:"attachments,omitempty"`
	Visibility     string          `json:"visibility"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

func toRecordResponse(rec *repo.ClinicalRecord) recordResponse {
	return recordResponse{
		ID:             rec.ID,
		AppointmentID:  rec.AppointmentID,
		PatientID:      rec.PatientID,
		ProfessionalID: rec.ProfessionalID,
		RecordType:     rec.RecordType,
		Diagnosis:      rec.Diagnosis,
		Prescription:   rec.Prescription,
		Observations:   rec.Observations,
		Attachments:    rec.Attachments,
		Visibility:     rec.Visibility,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateRecord registra o atendimento de uma consulta. O profissional autor
// precisa ser o da consulta; ADMIN registra em nome do profissional da
// consulta. Paciente e profissional vêm da consulta, nunca do corpo.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppointmentID int64           `json:"appointment_id"`
		RecordType    string          `json:"record_type"`
		Diagnosis     string          `json:"diagnosis"`
		Prescription  *string         `json:"prescription"`
		Observations  *string         `json:"observations"`
		Attachments   json.RawMessage `json:"attachments"`
		Visibility    string          `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if req.AppointmentID <= 0 {
		http.Error(w, `{"error":"appointment_id required"}`, http.StatusBadRequest)
		return
	}
	req.Diagnosis = strings.TrimSpace(req.Diagnosis)
	if req.Diagnosis == "" && (req.Prescription == nil || strings.TrimSpace(*req.Prescription) == "") {
		http.Error(w, `{"error":"informe diagnóstico ou prescrição"}`, http.StatusBadRequest)
		return
	}
	recordType := strings.ToUpper(strings.TrimSpace(req.RecordType))
	if recordType == "" {
		recordType = "CONSULTATION"
	}
	if !ValidAppointmentType(recordType) {
		http.Error(w, `{"error":"record_type inválido"}`, http.StatusBadRequest)
		return
	}
	visibility := strings.ToUpper(strings.TrimSpace(req.Visibility))
	if visibility == "" {
		visibility = repo.VisibilityPrivate
	}
	if !ValidVisibility(visibility) {
		http.Error(w, `{"error":"visibility inválida"}`, http.StatusBadRequest)
		return
	}

	actor := h.actorFrom(r)
	var authorProfessionalID int64
	switch actor.Role {
	case auth.RoleProfessional:
		if actor.ProfessionalID == 0 {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		authorProfessionalID = actor.ProfessionalID
	case auth.RoleAdmin:
		ap, err := repo.AppointmentByID(r.Context(), h.Pool, req.AppointmentID)
		if err != nil {
			repoError(w, "records", err)
			return
		}
		authorProfessionalID = ap.ProfessionalID
	default:
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	requestID, ip, userAgent := requestMeta(r)
	rec, err := repo.CreateRecord(r.Context(), h.Pool, req.AppointmentID, authorProfessionalID, actor.UserID,
		recordType, req.Diagnosis, req.Prescription, req.Observations, req.Attachments, visibility, requestID, ip, userAgent)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// GetRecord aplica a matriz de acesso; negativa é sempre 403 opaco.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	rec, err := repo.RecordByID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	actor := h.actorFrom(r)
	if d := CanViewRecord(actor, rec); !d.Allow {
		log.Printf("[records] denied read record=%d user=%d role=%s: %s", rec.ID, actor.UserID, actor.Role, d.Reason)
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// ListRecordsForPatient lista o histórico do paciente com o recorte do papel:
// profissional vê só o que escreveu, paciente só o que é SHARED.
func (h *Handler) ListRecordsForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	actor := h.actorFrom(r)
	scope, d := RecordListScope(actor, patientID)
	if !d.Allow {
		log.Printf("[records] denied list patient=%d user=%d role=%s: %s", patientID, actor.UserID, actor.Role, d.Reason)
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	limit, offset := ParseLimitOffset(r)
	list, total, err := repo.ListRecordsForPatient(r.Context(), h.Pool, patientID, scope, limit, offset)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	out := make([]recordResponse, 0, len(list))
	for i := range list {
		out = append(out, toRecordResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, pagedResponse{Data: out, Total: total, Limit: limit, Offset: offset})
}

// UpdateRecord atualiza campos informados (merge parcial) e audita na mesma
// transação.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		Diagnosis    *string         `json:"diagnosis"`
		Prescription *string         `json:"prescription"`
		Observations *string         `json:"observations"`
		Attachments  json.RawMessage `json:"attachments"`
		Visibility   *string         `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if req.Diagnosis == nil && req.Prescription == nil && req.Observations == nil && req.Attachments == nil && req.Visibility == nil {
		http.Error(w, `{"error":"nenhum campo para atualizar"}`, http.StatusBadRequest)
		return
	}
	if req.Diagnosis != nil && strings.TrimSpace(*req.Diagnosis) == "" {
		http.Error(w, `{"error":"diagnosis cannot be empty"}`, http.StatusBadRequest)
		return
	}
	if req.Visibility != nil {
		v := strings.ToUpper(strings.TrimSpace(*req.Visibility))
		if !ValidVisibility(v) {
			http.Error(w, `{"error":"visibility inválida"}`, http.StatusBadRequest)
			return
		}
		req.Visibility = &v
	}

	rec, err := repo.RecordByID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	actor := h.actorFrom(r)
	if d := CanUpdateRecord(actor, rec); !d.Allow {
		log.Printf("[records] denied update record=%d user=%d role=%s: %s", rec.ID, actor.UserID, actor.Role, d.Reason)
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	requestID, ip, userAgent := requestMeta(r)
	updated, err := repo.UpdateRecord(r.Context(), h.Pool, id, actor.UserID,
		req.Diagnosis, req.Prescription, req.Observations, req.Attachments, req.Visibility, requestID, ip, userAgent)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(updated))
}

type prescriptionViewResponse struct {
	RecordID         int64  `json:"record_id"`
	PatientName      string `json:"patient_name"`
	ProfessionalName string `json:"professional_name"`
	ProfessionalCRM  string `json:"professional_crm"`
	Specialty        string `json:"specialty"`
	Diagnosis        string `json:"diagnosis"`
	Prescription     string `json:"prescription"`
	IssuedAt         string `json:"issued_at"`
}

// GetPrescriptionView monta a visão do receituário (dados do paciente e do
// profissional + prescrição), com a mesma matriz de acesso da leitura do
// prontuário. Consulta sem prescrição: NO_PRESCRIPTIONS.
func (h *Handler) GetPrescriptionView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	rec, err := repo.RecordByID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	actor := h.actorFrom(r)
	if d := CanViewRecord(actor, rec); !d.Allow {
		log.Printf("[records] denied prescription record=%d user=%d role=%s: %s", rec.ID, actor.UserID, actor.Role, d.Reason)
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	if rec.Prescription == nil || strings.TrimSpace(*rec.Prescription) == "" {
		http.Error(w, `{"error":"NO_PRESCRIPTIONS"}`, http.StatusNotFound)
		return
	}
	view, err := repo.PrescriptionByRecordID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	writeJSON(w, http.StatusOK, prescriptionViewResponse{
		RecordID:         view.RecordID,
		PatientName:      view.PatientName,
		ProfessionalName: view.ProfessionalName,
		ProfessionalCRM:  view.ProfessionalCRM,
		Specialty:        view.Specialty,
		Diagnosis:        view.Diagnosis,
		Prescription:     view.Prescription,
		IssuedAt:         FormatDateTimeBR(view.CreatedAt),
	})
}

// PrescriptionPDF emite o receituário da consulta em PDF, com a mesma matriz
// de acesso da leitura do prontuário.
func (h *Handler) PrescriptionPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	rec, err := repo.RecordByID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	actor := h.actorFrom(r)
	if d := CanViewRecord(actor, rec); !d.Allow {
		log.Printf("[records] denied prescription record=%d user=%d role=%s: %s", rec.ID, actor.UserID, actor.Role, d.Reason)
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	if rec.Prescription == nil || strings.TrimSpace(*rec.Prescription) == "" {
		http.Error(w, `{"error":"consulta sem prescrição"}`, http.StatusNotFound)
		return
	}
	view, err := repo.PrescriptionByRecordID(r.Context(), h.Pool, id)
	if err != nil {
		repoError(w, "records", err)
		return
	}
	doc, err := pdf.BuildPrescription(pdf.PrescriptionData{
		RecordID:         view.RecordID,
		PatientName:      view.PatientName,
		ProfessionalName: view.ProfessionalName,
		ProfessionalCRM:  view.ProfessionalCRM,
		Specialty:        view.Specialty,
		Diagnosis:        view.Diagnosis,
		Prescription:     view.Prescription,
		IssuedAt:         FormatDateTimeBR(view.CreatedAt),
		VerifyBaseURL:    h.Cfg.AppPublicURL,
	})
	if err != nil {
		log.Printf("[records] prescription pdf record=%d: %v", id, err)
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="receituario.pdf"`)
	_, _ = w.Write(doc)
}
