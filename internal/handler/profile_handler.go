package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/internal/middleware"
	"agendacerto/pkg/logger"
)

// ProfileHandler serves the authenticated user's profile
type ProfileHandler struct {
	svc *empresa.Service
}

// NewProfileHandler builds the profile handler
func NewProfileHandler(svc *empresa.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// Get returns the authenticated user's profile
func (h *ProfileHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)

	user, err := h.svc.Profile(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, empresa.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		log.Error("Failed to load profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}
	return c.JSON(http.StatusOK, user)
}

// Update applies profile field changes
func (h *ProfileHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)

	var req empresa.ProfileInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.svc.UpdateProfile(c.Request().Context(), middleware.UserID(c), req)
	if err != nil {
		if errors.Is(err, empresa.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		log.Error("Failed to update profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	log.Info("Profile updated", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the user's password after checking the current one
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	err := h.svc.ChangePassword(c.Request().Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, empresa.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
		case errors.Is(err, empresa.ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		default:
			log.Error("Failed to change password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
		}
	}

	log.Info("Password changed", zap.Uint("user_id", middleware.UserID(c)))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
