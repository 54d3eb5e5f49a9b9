package users

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

// Handler manages account administration endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(principal.RoleAdmin))
		r.Get("/", h.listUsers)
		r.Get("/deactivated", h.listDeactivated)
		r.Delete("/{userId}", h.deactivate)
		r.Post("/{userId}/restore", h.restore)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(principal.RoleUser))
		r.Get("/me/role", h.myRole)
		r.Get("/{userId}", h.getUser)
		r.Put("/{userId}/password", h.changePassword)
	})
}

type listResponse struct {
	Users      []Account `json:"users"`
	TotalUsers int       `json:"totalUsers"`
}

type roleResponse struct {
	UserID int64          `json:"userId"`
	Role   principal.Role `json:"role"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	LoginName string `json:"loginName"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	accounts, err := h.service.ListOthers(r.Context(), g)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Users: accounts, TotalUsers: len(accounts)})
}

func (h *Handler) listDeactivated(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	accounts, err := h.service.ListDeactivated(r.Context(), g)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Users: accounts, TotalUsers: len(accounts)})
}

func (h *Handler) myRole(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	httpx.JSON(w, http.StatusOK, roleResponse{UserID: g.Principal.ID, Role: g.Principal.Role})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	account, err := h.service.Get(r.Context(), g, id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{ID: account.ID, LoginName: account.LoginName})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), g, id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "User deactivated successfully"})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Restore(r.Context(), g, id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "User restored successfully"})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	g, _ := gate.FromContext(r.Context())
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var change PasswordChange
	if err := httpx.Bind(r, &change); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), g, id, change); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func userID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id", shared.ErrValidation)
	}
	return id, nil
}
