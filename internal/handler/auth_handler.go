package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/pkg/jwtutil"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

// AuthHandler serves signup and login
type AuthHandler struct {
	svc *empresa.Service
}

// NewAuthHandler builds the auth handler over the empresa service
func NewAuthHandler(svc *empresa.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Signup creates a user account together with its empresa and returns a
// JWT already carrying the empresa id.
func (h *AuthHandler) Signup(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.SignupCounter.Inc()

	var req empresa.SignupInput
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse signup request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, emp, err := h.svc.Signup(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, empresa.ErrValidation):
			prometheus.RecordAuthError("invalid_signup_data")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, empresa.ErrEmailTaken):
			log.Error("Email already registered", zap.String("email", req.Email))
			prometheus.RecordAuthError("email_already_exists")
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		default:
			log.Error("Failed to create account", zap.Error(err))
			prometheus.RecordAuthError("signup_failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signup failed"})
		}
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, &emp.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Account created",
		zap.String("email", user.Email),
		zap.Uint("empresa_id", emp.ID),
		zap.String("slug", emp.Slug))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
		"empresa": emp,
	})
}

// Login authenticates an email/password pair
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.svc.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, empresa.ErrInvalidCredentials):
			log.Error("Invalid credentials", zap.String("email", req.Email))
			prometheus.RecordAuthError("invalid_credentials")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.Is(err, empresa.ErrUserInactive):
			log.Error("Inactive user attempted login", zap.String("email", req.Email))
			prometheus.RecordAuthError("user_inactive")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account is inactive"})
		default:
			log.Error("Login failed", zap.Error(err))
			prometheus.RecordAuthError("login_failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
	}

	var empresaID *uint
	emp, err := h.svc.ByUser(c.Request().Context(), user.ID)
	if err == nil {
		empresaID = &emp.ID
	} else if !errors.Is(err, empresa.ErrNotFound) {
		log.Error("Failed to load empresa", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, empresaID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in", zap.String("email", user.Email))

	response := echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
	}
	if emp != nil && empresaID != nil {
		response["empresa"] = emp
	}
	return c.JSON(http.StatusOK, response)
}

func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
