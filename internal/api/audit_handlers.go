package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fabiortecnologia/sghss/internal/repo"
)

// ListAuditLogs lista a trilha de auditoria (somente ADMIN via rota), com
// filtros por usuário, ação e intervalo de datas; mais recentes primeiro.
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repo.AuditLogFilter
	if s := q.Get("user_id"); s != "" {
		f.UserID, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := q.Get("action"); s != "" {
		f.Action = strings.ToUpper(strings.TrimSpace(s))
	}
	if s := q.Get("from"); s != "" {
		t, err := ParseScheduleDateTime(s)
		if err != nil {
			http.Error(w, `{"error":"from inválido"}`, http.StatusBadRequest)
			return
		}
		f.Since = t
	}
	if s := q.Get("to"); s != "" {
		t, err := ParseScheduleDateTime(s)
		if err != nil {
			http.Error(w, `{"error":"to inválido"}`, http.StatusBadRequest)
			return
		}
		f.Until = t
	}
	limit, offset := ParseLimitOffset(r)
	list, total, err := repo.ListAuditLogs(r.Context(), h.Pool, f, limit, offset)
	if err != nil {
		repoError(w, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, pagedResponse{Data: list, Total: total, Limit: limit, Offset: offset})
}
