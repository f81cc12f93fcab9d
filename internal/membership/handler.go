// internal/membership/handler.go
package membership

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gymdesk/internal/derive"
	"gymdesk/internal/domain"
	"gymdesk/internal/notify"
)

type Handler struct {
	service Service
	notices *notify.Center
	gate    Gate
	logger  *slog.Logger
}

// NewHandler wires the API. notices may be nil when no notification feed is
// exposed; a nil gate admits every request.
func NewHandler(service Service, notices *notify.Center, gate Gate, logger *slog.Logger) *Handler {
	if gate == nil {
		gate = AllowAll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, notices: notices, gate: gate, logger: logger}
}

// Router returns the HTTP routes. Everything under /api sits behind the gate.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(h.requireGate)

		api.Route("/members", func(mr chi.Router) {
			mr.Get("/", h.handleListMembers)
			mr.Post("/", h.handleRegisterMember)
			mr.Get("/{id}", h.handleGetMember)
			mr.Put("/{id}", h.handleUpdateMember)
			mr.Delete("/{id}", h.handleDeleteMember)
			mr.Post("/{id}/renew", h.handleRenewMember)
			mr.Post("/{id}/suspend", h.handleSuspendMember)
			mr.Post("/{id}/reactivate", h.handleReactivateMember)
			mr.Get("/{id}/payments", h.handleMemberPayments)
		})

		api.Route("/payments", func(pr chi.Router) {
			pr.Get("/", h.handleListPayments)
			pr.Post("/", h.handleRecordPayment)
			pr.Get("/summary", h.handlePaymentSummary)
			pr.Get("/history/{memberNumber}", h.handlePaymentHistory)
			pr.Patch("/{id}", h.handleCorrectPayment)
		})

		api.Get("/settings", h.handleGetSettings)
		api.Put("/settings", h.handleSaveSettings)
		api.Get("/dashboard", h.handleDashboard)
		api.Get("/reports/{year}", h.handleReport)

		api.Get("/notifications", h.handleListNotifications)
		api.Delete("/notifications/{id}", h.handleDismissNotification)
	})

	return r
}

func (h *Handler) requireGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.gate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gymdesk"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{
		Filter: derive.ParseFilter(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		asOf, err := domain.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid asOf date")
			return
		}
		q.AsOf = asOf
	}
	writeJSON(w, http.StatusOK, h.service.ListMembers(r.Context(), q))
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if !decode(w, r, &req) {
		return
	}

	member, err := h.service.RegisterMember(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req MemberDetails
	if !decode(w, r, &req) {
		return
	}
	member, err := h.service.UpdateMember(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMember(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRenewMember(w http.ResponseWriter, r *http.Request) {
	var req RenewInput
	if !decode(w, r, &req) {
		return
	}
	member, err := h.service.RenewMember(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleSuspendMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.SuspendMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleReactivateMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.ReactivateMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleMemberPayments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListPayments(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListPayments(r.Context(), r.URL.Query().Get("memberId")))
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentInput
	if !decode(w, r, &req) {
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleCorrectPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentChanges
	if !decode(w, r, &req) {
		return
	}
	payment, err := h.service.CorrectPayment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *Handler) handlePaymentSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.PaymentSummary(r.Context()))
}

func (h *Handler) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.PaymentHistory(r.Context(), chi.URLParam(r, "memberNumber")))
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.GetSettings(r.Context()))
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.Settings
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.SaveSettings(r.Context(), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var asOf domain.Date
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		var err error
		if asOf, err = domain.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid asOf date")
			return
		}
	}
	writeJSON(w, http.StatusOK, h.service.Dashboard(r.Context(), asOf))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	writeJSON(w, http.StatusOK, h.service.MonthlyReport(r.Context(), year))
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	if h.notices == nil {
		writeJSON(w, http.StatusOK, []notify.Notice{})
		return
	}
	writeJSON(w, http.StatusOK, h.notices.Snapshot())
}

func (h *Handler) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if h.notices != nil {
		h.notices.Remove(chi.URLParam(r, "id"))
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := domain.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: v.Fields})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrNoPrimary):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
