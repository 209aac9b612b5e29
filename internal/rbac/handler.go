package rbac

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/opencolegio/opencolegio/internal/platform/httpx"
)

// Handler exposes the access control store over the JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{logger: logger, service: service, validate: v}
}

// MountRoleRoutes registers the role catalog and role-permission routes.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Delete("/{id}", h.deleteRole)
	r.Post("/assign-permission", h.assignPermissionToRole)
	r.Post("/revoke-permission", h.revokePermissionFromRole)
}

// MountPermissionRoutes registers the permission catalog routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Post("/", h.createPermission)
	r.Delete("/{id}", h.deletePermission)
}

// MountUserRoutes registers the user-facing assignment and introspection
// routes; mounted under /users alongside the users module's own routes.
func (h *Handler) MountUserRoutes(r chi.Router) {
	r.Post("/assign-role", h.assignRoleToUser)
	r.Post("/revoke-role", h.revokeRoleFromUser)
	r.Post("/assign-permission", h.grantPermissionToUser)
	r.Post("/revoke-permission", h.revokePermissionFromUser)
	r.Get("/{userId}/roles", h.getUserRoles)
	r.Get("/{userId}/permissions", h.getUserPermissions)
	r.Get("/{userId}/access", h.getUserAccess)
	r.Post("/{userId}/check-role", h.checkUserRole)
	r.Post("/{userId}/check-permission", h.checkUserPermission)
}

type createNameRequest struct {
	Name string `json:"name" validate:"required"`
}

type rolePermissionRequest struct {
	RoleID       int64 `json:"role_id" validate:"required"`
	PermissionID int64 `json:"permission_id" validate:"required"`
}

type userRoleRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
	RoleID int64 `json:"role_id" validate:"required"`
}

type userPermissionRequest struct {
	UserID       int64 `json:"user_id" validate:"required"`
	PermissionID int64 `json:"permission_id" validate:"required"`
}

type checkRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type checkPermissionRequest struct {
	Permission string `json:"permission" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createNameRequest
	if !h.bind(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Role deleted successfully")
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createNameRequest
	if !h.bind(w, r, &req) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Permission deleted successfully")
}

func (h *Handler) assignPermissionToRole(w http.ResponseWriter, r *http.Request) {
	var req rolePermissionRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.AssignPermissionToRole(r.Context(), req.RoleID, req.PermissionID); err != nil {
		h.fail(w, "assign permission to role", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Permission assigned to role successfully")
}

func (h *Handler) revokePermissionFromRole(w http.ResponseWriter, r *http.Request) {
	var req rolePermissionRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.RevokePermissionFromRole(r.Context(), req.RoleID, req.PermissionID); err != nil {
		h.fail(w, "revoke permission from role", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Permission revoked from role successfully")
}

func (h *Handler) assignRoleToUser(w http.ResponseWriter, r *http.Request) {
	var req userRoleRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.AssignRoleToUser(r.Context(), req.UserID, req.RoleID); err != nil {
		h.fail(w, "assign role to user", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Role assigned to user successfully")
}

func (h *Handler) revokeRoleFromUser(w http.ResponseWriter, r *http.Request) {
	var req userRoleRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.RevokeRoleFromUser(r.Context(), req.UserID, req.RoleID); err != nil {
		h.fail(w, "revoke role from user", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Role revoked from user successfully")
}

func (h *Handler) grantPermissionToUser(w http.ResponseWriter, r *http.Request) {
	var req userPermissionRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.GrantPermissionToUser(r.Context(), req.UserID, req.PermissionID); err != nil {
		h.fail(w, "grant permission to user", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Permission assigned to user successfully")
}

func (h *Handler) revokePermissionFromUser(w http.ResponseWriter, r *http.Request) {
	var req userPermissionRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.RevokePermissionFromUser(r.Context(), req.UserID, req.PermissionID); err != nil {
		h.fail(w, "revoke permission from user", err)
		return
	}
	httpx.Message(w, http.StatusOK, "Permission revoked from user successfully")
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	names, err := h.service.UserRoles(r.Context(), userID)
	if err != nil {
		h.fail(w, "get user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": names})
}

func (h *Handler) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	perms, err := h.service.UserPermissions(r.Context(), userID)
	if err != nil {
		h.fail(w, "get user permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

// getUserAccess returns roles and effective permissions in one response; the
// two resolutions are independent so they run concurrently.
func (h *Handler) getUserAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	var (
		names []string
		perms []Permission
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		names, err = h.service.UserRoles(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = h.service.UserPermissions(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, "get user access", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": names, "permissions": perms})
}

func (h *Handler) checkUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	var req checkRoleRequest
	if !h.bind(w, r, &req) {
		return
	}
	has, err := h.service.HasRole(r.Context(), userID, req.Role)
	if err != nil {
		h.fail(w, "check user role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"has_role": has})
}

func (h *Handler) checkUserPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userId")
	if !ok {
		return
	}
	var req checkPermissionRequest
	if !h.bind(w, r, &req) {
		return
	}
	has, err := h.service.HasPermission(r.Context(), userID, req.Permission)
	if err != nil {
		h.fail(w, "check user permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"has_permission": has})
}

// bind decodes and validates the request body. It writes the error response
// and returns false when the input is rejected.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		fields := make(map[string][]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = append(fields[fe.Field()], fmt.Sprintf("The %s field is required.", fe.Field()))
			}
		}
		httpx.ValidationFailed(w, fields)
		return false
	}
	return true
}

// pathID parses a numeric path parameter. A non-numeric value cannot identify
// any record, so it is reported as not found rather than a validation error.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Message(w, http.StatusNotFound, "resource not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
