package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/niv-onboarding/internal/audit"
	"github.com/mesikahq/niv-onboarding/internal/auth"
	"github.com/mesikahq/niv-onboarding/internal/ehr"
	"github.com/mesikahq/niv-onboarding/internal/onboarding"
)

type Handler struct {
	authService       auth.Service
	onboardingService onboarding.Service
	auditService      audit.Service
}

func NewHandler(authService auth.Service, onboardingService onboarding.Service, auditService audit.Service) *Handler {
	return &Handler{
		authService:       authService,
		onboardingService: onboardingService,
		auditService:      auditService,
	}
}

type loginRequest struct {
	Email  string `json:"email" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and secret are required"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Secret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// AssessPatient pulls the patient's current diagnoses from the EHR and
// recomputes the onboarding qualifications.
func (h *Handler) AssessPatient(c *gin.Context) {
	record, err := h.onboardingService.AssessPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetPatientWithQualifications returns the live EHR record with a fresh
// assessment attached.
func (h *Handler) GetPatientWithQualifications(c *gin.Context) {
	result, err := h.onboardingService.GetPatientWithQualifications(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetOnboarding(c *gin.Context) {
	record, err := h.onboardingService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) ListOnboardings(c *gin.Context) {
	facilityID := c.Query("facility_id")
	if facilityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "facility_id is required"})
		return
	}

	records, err := h.onboardingService.ListByFacility(c.Request.Context(), facilityID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboardings": records})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	target := onboarding.Status(req.Status)
	if !target.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + req.Status})
		return
	}

	record, err := h.onboardingService.UpdateStatus(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) GetAuditLogs(c *gin.Context) {
	filters := map[string]interface{}{}
	if resource := c.Query("resource"); resource != "" {
		filters["resource"] = resource
	}
	if resourceID := c.Query("resource_id"); resourceID != "" {
		filters["resource_id"] = resourceID
	}

	events, err := h.auditService.QueryEvents(c.Request.Context(), filters, 0, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// writeError maps domain errors to HTTP. The recovery action travels in the
// body so callers can schedule a retry without parsing the message.
func (h *Handler) writeError(c *gin.Context, err error) {
	var domainErr *ehr.DomainError
	if errors.As(err, &domainErr) {
		status := http.StatusInternalServerError
		switch domainErr.Code {
		case ehr.CodePatientNotFound:
			status = http.StatusNotFound
		case ehr.CodePccUnauthorized:
			status = http.StatusBadGateway
		case ehr.CodePccUnavailable:
			status = http.StatusServiceUnavailable
		case "INVALID_TRANSITION":
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":  domainErr.Message,
			"code":   domainErr.Code,
			"action": domainErr.Action,
		})
		return
	}

	if errors.Is(err, onboarding.ErrOnboardingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
