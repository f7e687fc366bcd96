package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// CaseHandler handles case endpoints.
type CaseHandler struct {
	cases port.CaseRepository
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(cases port.CaseRepository) *CaseHandler {
	return &CaseHandler{cases: cases}
}

// CreateCaseRequest is the case creation payload.
type CreateCaseRequest struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/cases
func (h *CaseHandler) Create(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	caseType := req.Type
	if caseType == "" {
		caseType = domain.CaseTypeGeneric
	}
	cs := &domain.Case{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Type:        caseType,
		Description: req.Description,
	}
	if err := h.cases.Create(c.Request.Context(), cs); err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, cs)
}

// Get handles GET /api/v1/cases/:id
func (h *CaseHandler) Get(c *gin.Context) {
	cs, err := h.cases.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, cs)
}
