package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opencolegio/opencolegio/internal/observability"
	"github.com/opencolegio/opencolegio/internal/platform/httpx"
	"github.com/opencolegio/opencolegio/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
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
	return &Handler{logger: logger, service: service, metrics: metrics, validate: v}
}

// MountPublicRoutes registers routes reachable without a bearer token.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// MountProtectedRoutes registers routes that require a resolved actor.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Get("/user", h.handleCurrentUser)
}

type loginRequest struct {
	RUT      string `json:"rut" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		fields := make(map[string][]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = append(fields[fe.Field()], "The "+fe.Field()+" field is required.")
			}
		}
		httpx.ValidationFailed(w, fields)
		return
	}

	user, token, err := h.service.Login(r.Context(), req.RUT, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.metrics.ObserveLogin("failure")
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Message(w, http.StatusUnauthorized, "Credenciales inválidas.")
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.Message(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.metrics.ObserveLogin("success")
	httpx.JSON(w, http.StatusOK, loginResponse{
		Message:     "Inicio de sesión exitoso.",
		AccessToken: token,
		TokenType:   "Bearer",
		User:        user,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Message(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	if err := h.service.Logout(r.Context(), userID); err != nil {
		h.logger.Error("logout", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Message(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.Message(w, http.StatusOK, "Sesión cerrada correctamente.")
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Message(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Message(w, http.StatusNotFound, "resource not found")
			return
		}
		h.logger.Error("current user", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Message(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
