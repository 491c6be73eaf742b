package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agendacerto/internal/empresa"
	"agendacerto/internal/middleware"
	"agendacerto/internal/n8n"
	"agendacerto/pkg/logger"
)

// ProvisionHandler exposes workflow provisioning for the authenticated empresa
type ProvisionHandler struct {
	svc         *empresa.Service
	provisioner *n8n.Provisioner
}

// NewProvisionHandler builds the provisioning handler
func NewProvisionHandler(svc *empresa.Service, provisioner *n8n.Provisioner) *ProvisionHandler {
	return &ProvisionHandler{svc: svc, provisioner: provisioner}
}

// Provision ensures the empresa's booking workflow exists and is active.
// Concurrent calls for the same empresa get a 409 while the first one runs.
func (h *ProvisionHandler) Provision(c echo.Context) error {
	log := logger.FromContext(c)

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	emp, err := h.svc.ByID(c.Request().Context(), empresaID)
	if err != nil {
		if errors.Is(err, empresa.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "empresa not found"})
		}
		log.Error("Failed to load empresa", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load empresa"})
	}

	res, err := h.provisioner.Provision(c.Request().Context(), emp)
	if err != nil {
		if errors.Is(err, n8n.ErrProvisionInProgress) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "provisioning already in progress"})
		}
		log.Error("Provisioning failed", zap.Error(err), zap.Uint("empresa_id", empresaID))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "workflow provisioning failed"})
	}

	return c.JSON(http.StatusOK, res)
}

// WorkflowStatus reports the stored workflow id and status
func (h *ProvisionHandler) WorkflowStatus(c echo.Context) error {
	log := logger.FromContext(c)

	empresaID, ok := middleware.EmpresaID(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no empresa in token"})
	}

	emp, err := h.svc.ByID(c.Request().Context(), empresaID)
	if err != nil {
		if errors.Is(err, empresa.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "empresa not found"})
		}
		log.Error("Failed to load empresa", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load empresa"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"workflow_id": emp.N8NWorkflowID,
		"status":      emp.N8NWorkflowStatus,
	})
}
