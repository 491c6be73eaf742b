package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/internal/middleware"
	"agendacerto/pkg/logger"
	"agendacerto/prometheus"
)

// EmpresaHandler serves the authenticated empresa profile
type EmpresaHandler struct {
	svc *empresa.Service
}

// NewEmpresaHandler builds the empresa handler
func NewEmpresaHandler(svc *empresa.Service) *EmpresaHandler {
	return &EmpresaHandler{svc: svc}
}

// Get returns the empresa owned by the authenticated user
func (h *EmpresaHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEmpresaOperation("get")

	emp, err := h.svc.ByUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, empresa.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "empresa not found"})
		}
		log.Error("Failed to load empresa", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load empresa"})
	}
	return c.JSON(http.StatusOK, emp)
}

// Update applies profile changes to the authenticated empresa
func (h *EmpresaHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEmpresaOperation("update")

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	var req empresa.UpdateInput
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse empresa update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	emp, err := h.svc.Update(c.Request().Context(), empresaID, req)
	if err != nil {
		switch {
		case errors.Is(err, empresa.ErrValidation):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, empresa.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "empresa not found"})
		default:
			log.Error("Failed to update empresa", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update empresa"})
		}
	}

	log.Info("Empresa updated", zap.Uint("empresa_id", emp.ID))
	return c.JSON(http.StatusOK, emp)
}
