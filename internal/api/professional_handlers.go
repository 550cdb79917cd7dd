package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

type professionalResponse struct {
	ID        int64   `json:"id"`
	UserID    *int64  `json:"user_id,omitempty"`
	FullName  string  `json:"full_name"`
	Specialty string  `json:"specialty"`
	CRM       string  `json:"crm"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
}

func toProfessionalResponse(p *repo.Professional) professionalResponse {
	return professionalResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		FullName:  p.FullName,
		Specialty: p.Specialty,
		CRM:       p.CRM,
		Phone:     p.Phone,
		Email:     p.Email,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateProfessional cadastra profissional (CRM no formato CRM-12345).
func (h *Handler) CreateProfessional(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName  string  `json:"full_name"`
		Specialty string  `json:"specialty"`
		CRM       string  `json:"crm"`
		Phone     *string `json:"phone"`
		Email     *string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.CRM = strings.ToUpper(strings.TrimSpace(req.CRM))
	if req.FullName == "" || req.Specialty == "" {
		http.Error(w, `{"error":"full_name and specialty required"}`, http.StatusBadRequest)
		return
	}
	if err := ValidateCRM(req.CRM); err != nil {
		http.Error(w, `{"error":"CRM inválido (formato CRM-12345)"}`, http.StatusBadRequest)
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
	p := &repo.Professional{
		FullName:  req.FullName,
		Specialty: req.Specialty,
		CRM:       req.CRM,
		Phone:     req.Phone,
		Email:     req.Email,
		Active:    true,
	}
	if err := repo.CreateProfessional(r.Context(), h.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			http.Error(w, `{"error":"CRM já cadastrado"}`, http.StatusConflict)
			return
		}
		repoError(w, "professionals", err)
		return
	}
	h.Cache.DeletePrefix("professionals:")
	writeJSON(w, http.StatusCreated, toProfessionalResponse(p))
}

func (h *Handler) GetProfessional(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	p, err := repo.ProfessionalByID(r.Context(), h.DB, id)
	if err != nil {
		repoError(w, "professionals", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfessionalResponse(p))
}

// ListProfessionals lista o corpo clínico. A listagem é a consulta mais
// frequente da recepção, então a página vai para o cache TTL.
func (h *Handler) ListProfessionals(w http.ResponseWriter, r *http.Request) {
	specialty := strings.TrimSpace(r.URL.Query().Get("specialty"))
	onlyActive := r.URL.Query().Get("include_inactive") != "true"
	limit, offset := ParseLimitOffset(r)

	cacheKey := fmt.Sprintf("professionals:%s:%v:%d:%d", specialty, onlyActive, limit, offset)
	if cached := h.Cache.Get(cacheKey); cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	list, total, err := repo.ListProfessionals(r.Context(), h.DB, specialty, onlyActive, limit, offset)
	if err != nil {
		repoError(w, "professionals", err)
		return
	}
	out := make([]professionalResponse, 0, len(list))
	for i := range list {
		out = append(out, toProfessionalResponse(&list[i]))
	}
	body, err := json.Marshal(pagedResponse{Data: out, Total: total, Limit: limit, Offset: offset})
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	h.Cache.Set(cacheKey, body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// UpdateProfessional atualiza campos informados. CRM é imutável.
func (h *Handler) UpdateProfessional(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	var req struct {
		FullName  *string `json:"full_name"`
		Specialty *string `json:"specialty"`
		Phone     *string `json:"phone"`
		Email     *string `json:"email"`
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
	p, err := repo.UpdateProfessional(r.Context(), h.DB, id, req.FullName, req.Specialty, req.Phone, req.Email)
	if err != nil {
		repoError(w, "professionals", err)
		return
	}
	h.Cache.DeletePrefix("professionals:")
	writeJSON(w, http.StatusOK, toProfessionalResponse(p))
}

// DeactivateProfessional desativa: não recebe novos agendamentos, mas os
// existentes permanecem.
func (h *Handler) DeactivateProfessional(w http.ResponseWriter, r *http.Request) {
	h.setProfessionalActive(w, r, false, "Profissional desativado.")
}

// ReactivateProfessional reativa o profissional.
func (h *Handler) ReactivateProfessional(w http.ResponseWriter, r *http.Request) {
	h.setProfessionalActive(w, r, true, "Profissional reativado.")
}

func (h *Handler) setProfessionalActive(w http.ResponseWriter, r *http.Request, active bool, msg string) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return
	}
	if err := repo.SetProfessionalActive(r.Context(), h.DB, id, active); err != nil {
		repoError(w, "professionals", err)
		return
	}
	h.Cache.DeletePrefix("professionals:")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// CreateProfessionalAccess cria o login (role PROFESSIONAL) vinculado ao
// profissional.
func (h *Handler) CreateProfessionalAccess(w http.ResponseWriter, r *http.Request) {
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
	p, err := repo.ProfessionalByID(r.Context(), h.DB, id)
	if err != nil {
		repoError(w, "professionals", err)
		return
	}
	if p.UserID != nil {
		http.Error(w, `{"error":"profissional já possui acesso"}`, http.StatusConflict)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	userID, err := repo.CreateUser(r.Context(), h.Pool, p.FullName, req.Email, hash, auth.RoleProfessional)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			http.Error(w, `{"error":"e-mail já cadastrado"}`, http.StatusConflict)
			return
		}
		repoError(w, "professionals", err)
		return
	}
	if err := h.DB.WithContext(r.Context()).Model(&repo.Professional{}).Where("id = ?", id).
		Update("user_id", userID).Error; err != nil {
		repoError(w, "professionals", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user_id": userID, "professional_id": id})
}
