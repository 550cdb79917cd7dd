package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

type UserInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Register cria um usuário. Role padrão é RECEPTIONIST; criação de ADMIN pela
// API é sempre rejeitada (admins nascem no seed ou direto no banco).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"name, email and password required"}`, http.StatusBadRequest)
		return
	}
	if err := ValidateEmail(req.Email); err != nil {
		http.Error(w, `{"error":"invalid email"}`, http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, `{"error":"password must have at least 8 characters"}`, http.StatusBadRequest)
		return
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = auth.RoleReceptionist
	}
	if role == auth.RoleAdmin {
		http.Error(w, `{"error":"cannot register ADMIN"}`, http.StatusForbidden)
		return
	}
	if !auth.ValidRole(role) {
		http.Error(w, `{"error":"invalid role"}`, http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	id, err := repo.CreateUser(r.Context(), h.Pool, req.Name, req.Email, hash, role)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			http.Error(w, `{"error":"e-mail já cadastrado"}`, http.StatusConflict)
			return
		}
		repoError(w, "auth", err)
		return
	}
	writeJSON(w, http.StatusCreated, UserInfo{ID: id, Name: req.Name, Email: req.Email, Role: role})
}

// Login autentica por e-mail e senha e emite o JWT. Sucesso e falha são
// auditados; a resposta de falha é sempre genérica.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"error":"email and password required"}`, http.StatusBadRequest)
		return
	}
	u, err := repo.UserByEmail(r.Context(), h.Pool, req.Email)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			repoError(w, "auth", err)
			return
		}
		h.audit(r, repo.AuditEvent{Action: repo.AuditLoginFailed, Details: map[string]string{"email": req.Email, "reason": "unknown user"}})
		genericLoginError(w)
		return
	}
	if !u.Active {
		h.audit(r, repo.AuditEvent{UserID: &u.ID, Action: repo.AuditLoginFailed, Details: map[string]string{"reason": "inactive"}})
		genericLoginError(w)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.audit(r, repo.AuditEvent{UserID: &u.ID, Action: repo.AuditLoginFailed, Details: map[string]string{"reason": "wrong password"}})
		genericLoginError(w)
		return
	}
	exp := time.Duration(h.Cfg.JWTExpiresSeconds) * time.Second
	tok, err := auth.BuildJWT(h.Cfg.JWTSecret, u.ID, u.Role, u.Email, exp)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}
	h.audit(r, repo.AuditEvent{UserID: &u.ID, Action: repo.AuditLoginSuccess})
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     tok,
		ExpiresAt: time.Now().Add(exp),
		User:      UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
	})
}

func genericLoginError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"credenciais inválidas"}`))
}

// Me retorna o usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c := auth.ClaimsFrom(r.Context())
	if c == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	u, err := repo.UserByID(r.Context(), h.Pool, c.UserID)
	if err != nil {
		repoError(w, "auth", err)
		return
	}
	writeJSON(w, http.StatusOK, UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
}

// actorFrom resolves the caller into an Actor, loading the linked professional
// or patient profile when the role has one.
func (h *Handler) actorFrom(r *http.Request) Actor {
	a := Actor{
		UserID: auth.UserIDFrom(r.Context()),
		Role:   auth.RoleFrom(r.Context()),
	}
	switch a.Role {
	case auth.RoleProfessional:
		if p, err := repo.ProfessionalByUserID(r.Context(), h.DB, a.UserID); err == nil {
			a.ProfessionalID = p.ID
		}
	case auth.RolePatient:
		if p, err := repo.PatientByUserID(r.Context(), h.DB, a.UserID); err == nil {
			a.PatientID = p.ID
		}
	}
	return a
}
