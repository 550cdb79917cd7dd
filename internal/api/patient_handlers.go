package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/crypto"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

type patientResponse struct {
	ID         int64   `json:"id"`
	UserID     *int64  `json:"user_id,omitempty"`
	FullName   string  `json:"full_name"`
	CPF        *string `json:"cpf,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Address    *string `json:"address,omitempty"`
	Anonymized bool    `json:"anonymized"`
	CreatedAt  string  `json:"created_at"`
}

// toPatientResponse monta a resposta; o CPF só é decifrado para
// ADMIN/RECEPTIONIST (includeCPF).
func (h *Handler) toPatientResponse(p *repo.Patient, includeCPF bool) patientResponse {
	out := patientResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		FullName:   p.FullName,
		Phone:      p.Phone,
		Email:      p.Email,
		Address:    p.Address,
		Anonymized: p.Anonymized,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.BirthDate != nil {
		s := p.BirthDate.Format("2006-01-02")
		out.BirthDate = &s
	}
	if includeCPF && len(p.CPFEncrypted) > 0 && p.CPFKeyVersion != nil {
		plain, err := crypto.Decrypt(p.CPFEncrypted, p.CPFNonce, *p.CPFKeyVersion, h.Keys)
		if err != nil {
			log.Printf("[patients] decrypt cpf patient=%d: %v", p.ID, err)
		} else {
			s := string(plain)
			out.CPF = &s
		}
	}
	return out
}

func parseBirthDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidDateTime
}

// CreatePatient cadastra paciente. Nome e CPF obrigatórios; CPF é cifrado em
// repouso e o hash detecta duplicidade.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName  string  `json:"full_name"`
		CPF       string  `json:"cpf"`
		BirthDate string  `json:"birth_date"`
		Phone     *string `json:"phone"`
		Email     *string `json:"email"`
		Address   *string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		http.Error(w, `{"error":"full_name obrigatório"}`, http.StatusBadRequest)
		return
	}
	cpf := crypto.NormalizeCPF(req.CPF)
	if len(cpf) != 11 {
		http.Error(w, `{"error":"CPF inválido"}`, http.StatusBadRequest)
		return
	}
	if req.Phone != nil && *req.Phone != "" {
		if err := ValidatePhone(*req.Phone); err != nil {
			http.Error(w, `{"error":"telefone inválido"}`, http.StatusBadRequest)
			return
		}
	}
	if req.Email != nil && *req.Email != "" {
		if err := ValidateEmail(*req.Email); err != nil {
			http.Error(w, `{"error":"e-mail inválido"}`, http.StatusBadRequest)
			return
		}
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		http.Error(w, `{"error":"birth_date inválida (use DD/MM/YYYY)"}`, http.StatusBadRequest)
		return
	}

	cpfHash := crypto.CPFHash(cpf)
	if _, err := repo.PatientByCPFHash(r.Context(), h.DB, cpfHash); err == nil {
		http.Error(w, `{"error":"CPF já cadastrado"}`, http.StatusConflict)
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		repoError(w, "patients", err)
		return
	}
	keyVer := h.Cfg.CurrentDataKeyVer
	ciphertext, nonce, err := crypto.Encrypt([]byte(cpf), keyVer, h.Keys)
	if err != nil {
		log.Printf("[patients] encrypt cpf: %v", err)
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	p := &repo.Patient{
		FullName:      req.FullName,
		CPFEncrypted:  ciphertext,
		CPFNonce:      nonce,
		CPFKeyVersion: &keyVer,
		CPFHash:       &cpfHash,
		BirthDate:     birthDate,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
	}
	if err := repo.CreatePatient(r.Context(), h.DB, p); err != nil {
		repoError(w, "patients", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toPatientResponse(p, true))
}

// GetPatient: staff vê tudo; PATIENT só o próprio cadastro (sem CPF decifrado
// para quem não é staff).
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	p, err := repo.PatientByID(r.Context(), h.DB, id)
	if err != nil {
		repoError(w, "patients", err)
		return
	}
	actor := h.actorFrom(r)
	isStaff := actor.Role == auth.RoleAdmin || actor.Role == auth.RoleReceptionist
	if !isStaff && actor.Role == auth.RolePatient && actor.PatientID != p.ID {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, h.toPatientResponse(p, isStaff))
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r)
	list, total, err := repo.ListPatients(r.Context(), h.DB, limit, offset)
	if err != nil {
		repoError(w, "patients", err)
		return
	}
	actor := h.actorFrom(r)
	isStaff := actor.Role == auth.RoleAdmin || actor.Role == auth.RoleReceptionist
	out := make([]patientResponse, 0, len(list))
	for i := range list {
		out = append(out, h.toPatientResponse(&list[i], isStaff))
	}
	writeJSON(w, http.StatusOK, pagedResponse{Data: out, Total: total, Limit: limit, Offset: offset})
}

// UpdatePatient atualiza campos informados. CPF é imutável após o cadastro.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		FullName  *string `json:"full_name"`
		BirthDate *string `json:"birth_date"`
		Phone     *string `json:"phone"`
		Email     *string `json:"email"`
		Address   *string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		http.Error(w, `{"error":"full_name não pode ser vazio"}`, http.StatusBadRequest)
		return
	}
	if req.Phone != nil && *req.Phone != "" {
		if err := ValidatePhone(*req.Phone); err != nil {
			http.Error(w, `{"error":"telefone inválido"}`, http.StatusBadRequest)
			return
		}
	}
	if req.Email != nil && *req.Email != "" {
		if err := ValidateEmail(*req.Email); err != nil {
			http.Error(w, `{"error":"e-mail inválido"}`, http.StatusBadRequest)
			return
		}
	}
	var birthDate *time.Time
	if req.BirthDate != nil {
		birthDate, err = parseBirthDate(*req.BirthDate)
		if err != nil {
			http.Error(w, `{"error":"birth_date inválida (use DD/MM/YYYY)"}`, http.StatusBadRequest)
			return
		}
	}
	p, err := repo.UpdatePatient(r.Context(), h.DB, id, req.FullName, req.Phone, req.Email, req.Address, birthDate)
	if err != nil {
		repoError(w, "patients", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPatientResponse(p, true))
}

// DeletePatient faz soft delete (o histórico clínico permanece).
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	res := h.DB.WithContext(r.Context()).Delete(&repo.Patient{}, "id = ?", id)
	if res.Error != nil {
		repoError(w, "patients", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Paciente removido."})
}

// CreatePatientAccess cria o login (role PATIENT) vinculado ao paciente.
func (h *Handler) CreatePatientAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := ValidateEmail(req.Email); err != nil {
		http.Error(w, `{"error":"e-mail inválido"}`, http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, `{"error":"password must have at least 8 characters"}`, http.StatusBadRequest)
		return
	}
	p, err := repo.PatientByID(r.Context(), h.DB, id)
	if err != nil {
		repoError(w, "patients", err)
		return
	}
	if p.UserID != nil {
		http.Error(w, `{"error":"paciente já possui acesso"}`, http.StatusConflict)
		return
	}
	if p.Anonymized {
		http.Error(w, `{"error":"paciente anonimizado"}`, http.StatusConflict)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	userID, err := repo.CreateUser(r.Context(), h.Pool, p.FullName, req.Email, hash, auth.RolePatient)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			http.Error(w, `{"error":"e-mail já cadastrado"}`, http.StatusConflict)
			return
		}
		repoError(w, "patients", err)
		return
	}
	if err := h.DB.WithContext(r.Context()).Model(&repo.Patient{}).Where("id = ?", id).
		Update("user_id", userID).Error; err != nil {
		repoError(w, "patients", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user_id": userID, "patient_id": id})
}

// AnonymizePatient apaga os dados pessoais do paciente (LGPD). A operação é
// transacional e auditada; repetir é no-op.
func (h *Handler) AnonymizePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	actor := h.actorFrom(r)
	requestID, ip, userAgent := requestMeta(r)
	if err := repo.AnonymizePatient(r.Context(), h.Pool, id, actor.UserID, requestID, ip, userAgent); err != nil {
		repoError(w, "patients", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Paciente anonimizado."})
}
