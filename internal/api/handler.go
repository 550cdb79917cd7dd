package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/fabiortecnologia/sghss/internal/cache"
	"github.com/fabiortecnologia/sghss/internal/config"
	"github.com/fabiortecnologia/sghss/internal/middleware"
	"github.com/fabiortecnologia/sghss/internal/repo"
)

type Handler struct {
	Pool  *pgxpool.Pool
	DB    *gorm.DB
	Cfg   *config.Config
	Cache *cache.TTL
	// Keys: chaves de cifra do CPF em repouso, parseadas de DATA_ENCRYPTION_KEYS.
	Keys map[string][]byte
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// pathID reads the {id} path variable as int64.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// requestMeta extracts request id, client IP and user agent for audit rows.
func requestMeta(r *http.Request) (requestID, ip, userAgent string) {
	requestID = middleware.RequestIDFromContext(r.Context())
	ip = r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.Index(ip, ","); idx > 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return requestID, ip, r.UserAgent()
}

// audit writes the event detached from the request: logged but never blocking
// or failing the response.
func (h *Handler) audit(r *http.Request, ev repo.AuditEvent) {
	ev.RequestID, ev.IP, ev.UserAgent = requestMeta(r)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.CreateAuditLog(ctx, h.Pool, ev); err != nil {
			log.Printf("[audit] write failed action=%s: %v", ev.Action, err)
		}
	}()
}

// Health responds 200 as long as the process is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings the database.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Pool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// repoError maps repo sentinel errors to HTTP responses. Unexpected errors are
// logged with the component tag and answered as 500.
func repoError(w http.ResponseWriter, component string, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, repo.ErrScheduleConflict):
		http.Error(w, `{"error":"Profissional já possui agendamento neste horário (RN01)"}`, http.StatusBadRequest)
	case errors.Is(err, repo.ErrPatientInvalid):
		http.Error(w, `{"error":"paciente não encontrado ou inativo"}`, http.StatusUnprocessableEntity)
	case errors.Is(err, repo.ErrProfessionalInvalid):
		http.Error(w, `{"error":"profissional não encontrado ou inativo"}`, http.StatusUnprocessableEntity)
	case errors.Is(err, repo.ErrAppointmentCancelled):
		http.Error(w, `{"error":"consulta cancelada"}`, http.StatusConflict)
	case errors.Is(err, repo.ErrAppointmentCompleted):
		http.Error(w, `{"error":"consulta já realizada"}`, http.StatusConflict)
	case errors.Is(err, repo.ErrNotAppointmentProfessional):
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	case errors.Is(err, repo.ErrDuplicate):
		http.Error(w, `{"error":"registro duplicado"}`, http.StatusConflict)
	default:
		log.Printf("[%s] %v", component, err)
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}
