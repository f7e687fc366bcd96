package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// SplitHandler handles document split/classify endpoints.
type SplitHandler struct {
	splitter port.Splitter
}

// NewSplitHandler creates a new SplitHandler.
func NewSplitHandler(splitter port.Splitter) *SplitHandler {
	return &SplitHandler{splitter: splitter}
}

// Split handles POST /api/v1/split
func (h *SplitHandler) Split(c *gin.Context) {
	var req domain.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.DocumentID == "" {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document_id is required")
		return
	}

	result, err := h.splitter.Split(c.Request.Context(), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}
