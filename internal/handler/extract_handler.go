package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// ExtractHandler handles field extraction endpoints.
type ExtractHandler struct {
	extractor port.Extractor
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(extractor port.Extractor) *ExtractHandler {
	return &ExtractHandler{extractor: extractor}
}

// Extract handles POST /api/v1/extract
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req domain.ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.extractor.Extract(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, resp)
}
