package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/golavi5/tillpoint/internal/auth"
	"github.com/golavi5/tillpoint/internal/platform/httpx"
	"github.com/golavi5/tillpoint/internal/shared"
)

// Handler serves the audit trail over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authmw  auth.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authmw: authmw}
}

// MountRoutes registers the audit trail route. Admins only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authmw.RequireRole(auth.RoleAdmin))
		r.Get("/audit", h.trail)
	})
}

func (h *Handler) trail(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	req := ListRequest{
		CompanyID: principal.CompanyID,
		Entity:    q.Get("entity"),
		Action:    q.Get("action"),
	}
	req.ActorID, _ = strconv.ParseInt(q.Get("actor_id"), 10, 64)
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
			return
		}
		req.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
			return
		}
		// Inclusive end date.
		req.To = t.AddDate(0, 0, 1)
	}

	result, err := h.service.Trail(r.Context(), req)
	if err != nil {
		h.logger.Error("audit trail", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
