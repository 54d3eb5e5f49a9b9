package projects

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kis-labs/webbuilder/internal/gate"
	"github.com/kis-labs/webbuilder/internal/platform/httpx"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
)

// Handler exposes project endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    *gate.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, g *gate.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: g}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.gate.Require(principal.RoleUser))
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/alias/{alias}", h.byAlias)
	r.Post("/{projectId}/duplicate", h.duplicate)
}

type savedResponse struct {
	Message   string `json:"message"`
	ProjectID int64  `json:"projectId"`
	Alias     string `json:"alias"`
}

type projectResponse struct {
	Project *Project `json:"project"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	var in CreateInput
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	p, err := h.service.Create(r.Context(), g, in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, savedResponse{Message: "Project created successfully", ProjectID: p.ID, Alias: p.Alias})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), g, ListQuery{
		Page:   shared.ParsePageRequest(q.Get("page"), q.Get("limit")),
		Name:   q.Get("name"),
		SortBy: SortField(q.Get("sortBy")),
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) byAlias(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	p, err := h.service.GetByAlias(r.Context(), g, chi.URLParam(r, "alias"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projectResponse{Project: p})
}

func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "projectId"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, r, h.logger, fmt.Errorf("%w: invalid project id", shared.ErrValidation))
		return
	}
	p, err := h.service.Duplicate(r.Context(), g, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, savedResponse{Message: "Project duplicated successfully", ProjectID: p.ID, Alias: p.Alias})
}
