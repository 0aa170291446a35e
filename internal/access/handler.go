package access

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clubforge/clubforge/internal/authz"
	"github.com/clubforge/clubforge/internal/platform/httpx"
	"github.com/clubforge/clubforge/internal/shared"
)

// Handler exposes the user permission management endpoints. Every mutation
// response carries the refreshed effective permission state so the dialog
// can re-render without a follow-up fetch.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	authz    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), authz: authz}
}

type setOverridesRequest struct {
	Grants    []int64 `json:"grants" validate:"dive,gt=0"`
	Denies    []int64 `json:"denies" validate:"dive,gt=0"`
	Confirmed bool    `json:"confirmed"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

// MountRoutes registers permission management routes under the user tree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermUsersManage))
		r.Get("/{id}/permissions", h.effectivePermissions)
		r.Post("/{id}/permissions", h.setOverrides)
		r.Delete("/{id}/permissions/{permissionID}", h.removeOverride)
		r.Post("/{id}/roles", h.assignRole)
		r.Delete("/{id}/roles/{roleID}", h.removeRole)
	})
}

func (h *Handler) effectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	resolved, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) setOverrides(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actingUserID, ok := h.actingUserID(w, r)
	if !ok {
		return
	}
	var req setOverridesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	resolved, err := h.service.SetOverrides(r.Context(), actingUserID, userID, req.Grants, req.Denies, req.Confirmed)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) removeOverride(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	actingUserID, ok := h.actingUserID(w, r)
	if !ok {
		return
	}
	resolved, err := h.service.RemoveOverride(r.Context(), actingUserID, userID, permissionID, confirmedQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actingUserID, ok := h.actingUserID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	resolved, err := h.service.AssignRole(r.Context(), actingUserID, userID, req.RoleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	actingUserID, ok := h.actingUserID(w, r)
	if !ok {
		return
	}
	resolved, err := h.service.RemoveRole(r.Context(), actingUserID, userID, roleID, confirmedQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", param+" must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) actingUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return 0, false
	}
	return id, true
}

func confirmedQuery(r *http.Request) bool {
	return r.URL.Query().Get("confirmed") == "true"
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var integrity *IntegrityError
	switch {
	case errors.Is(err, ErrSelfLockout):
		httpx.ProblemTyped(w, http.StatusConflict, "urn:clubforge:self-lockout", "Self Lockout", err.Error())
	case errors.Is(err, ErrConfirmationRequired):
		httpx.ProblemTyped(w, http.StatusConflict, "urn:clubforge:confirmation-required", "Confirmation Required", err.Error())
	case errors.As(err, &integrity):
		h.logger.Error("data integrity failure", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Data Integrity Error", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user does not exist")
	default:
		h.logger.Error("access request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
