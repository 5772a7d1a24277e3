package handler

import (
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/service"
)

// AccessHandler serves the operator-facing session API.
type AccessHandler struct {
	svc *service.AccessService
}

// NewAccessHandler constructs an AccessHandler.
func NewAccessHandler(svc *service.AccessService) *AccessHandler {
	return &AccessHandler{svc: svc}
}

// StartSession handles POST /api/sessions
// Validates the booth code, admits the operator and returns a session token.
func (h *AccessHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req model.StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	info := model.OperatorInfo{Name: req.OperatorName, Contact: req.OperatorContact}
	started, err := h.svc.StartSession(r.Context(), req.Code, info, clientAddress(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, started)
}

// CurrentSession handles GET /api/sessions/current
func (h *AccessHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	token, ok := requireToken(w, r)
	if !ok {
		return
	}

	view, err := h.svc.GetCurrentSession(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// RefreshSession handles POST /api/sessions/current/refresh
func (h *AccessHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	token, ok := requireToken(w, r)
	if !ok {
		return
	}

	expiresAt, err := h.svc.RefreshSession(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]time.Time{"expires_at": expiresAt})
}

// EndSession handles DELETE /api/sessions/current
// Closes the operator's operation and returns its summary.
func (h *AccessHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	token, ok := requireToken(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.EndSession(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func requireToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := sessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return "", false
	}
	return token, true
}
