package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// AdminHandler serves booth code management, operator listings and stats.
type AdminHandler struct {
	svc *service.AdminService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// AssignCode handles POST /admin/booths/{id}/code
func (h *AdminHandler) AssignCode(w http.ResponseWriter, r *http.Request) {
	h.setCode(w, r, h.svc.AssignCode, http.StatusCreated)
}

// RegenerateCode handles PUT /admin/booths/{id}/code
// The previous code stops working immediately.
func (h *AdminHandler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	h.setCode(w, r, h.svc.RegenerateCode, http.StatusOK)
}

type codeSetter func(ctx context.Context, boothID string, expiryDays int) (string, *time.Time, error)

func (h *AdminHandler) setCode(w http.ResponseWriter, r *http.Request, set codeSetter, status int) {
	id := chi.URLParam(r, "id")

	var req model.AssignCodeRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	code, expiresAt, err := set(r.Context(), id, req.ExpiryDays)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, status, model.CodeResponse{BoothID: id, Code: code, ExpiresAt: expiresAt})
}

// RevokeCode handles DELETE /admin/booths/{id}/code
func (h *AdminHandler) RevokeCode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RevokeCode(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CodeQR handles GET /admin/booths/{id}/code.png
// Renders the booth's current code as a PNG QR image for printing.
func (h *AdminHandler) CodeQR(w http.ResponseWriter, r *http.Request) {
	booth, err := h.svc.Booth(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if booth.Code == nil {
		writeError(w, http.StatusNotFound, "booth has no access code")
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeError(w, http.StatusBadRequest, "size must be between 128 and 1024")
			return
		}
		size = n
	}

	png, err := qrcode.Encode(*booth.Code, qrcode.Medium, size)
	if err != nil {
		slog.Error("qr encode failed", "booth_id", booth.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ListOperators handles GET /admin/booths/{id}/operators
func (h *AdminHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.svc.ListActiveOperators(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

// EndOperation handles POST /admin/operations/{id}/end
// Closes an operation on the operator's behalf.
func (h *AdminHandler) EndOperation(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ForceEndOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Stats handles GET /admin/stats?booth_id=
// Without booth_id the summary covers every booth.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetOperationStats(r.Context(), r.URL.Query().Get("booth_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
