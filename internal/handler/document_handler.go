package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// DocumentHandler handles document ingestion and lookup endpoints.
type DocumentHandler struct {
	docs    port.DocumentRepository
	pages   port.PageRepository
	results port.FieldResultRepository
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(docs port.DocumentRepository, pages port.PageRepository, results port.FieldResultRepository) *DocumentHandler {
	return &DocumentHandler{docs: docs, pages: pages, results: results}
}

// CreateDocumentRequest is the ingestion payload: pre-parsed document
// content with layout elements and per-page text.
type CreateDocumentRequest struct {
	FileName     string                `json:"file_name" binding:"required"`
	DocumentType string                `json:"document_type"`
	FileSHA256   string                `json:"file_sha256"`
	Elements     domain.ElementList    `json:"elements"`
	Pages        []domain.DocumentPage `json:"pages" binding:"required"`
}

// Create handles POST /api/v1/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	doc := &domain.Document{
		ID:           uuid.New().String(),
		FileName:     req.FileName,
		DocumentType: req.DocumentType,
		Status:       "ready",
		FileSHA256:   req.FileSHA256,
		PageCount:    len(req.Pages),
		Elements:     req.Elements,
	}
	if err := h.docs.Create(c.Request.Context(), doc); err != nil {
		HandleError(c, err)
		return
	}

	for i := range req.Pages {
		req.Pages[i].DocumentID = doc.ID
		if req.Pages[i].ID == "" {
			req.Pages[i].ID = uuid.New().String()
		}
	}
	if err := h.pages.CreateBatch(c.Request.Context(), req.Pages); err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, doc)
}

// Get handles GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, doc)
}

// Results handles GET /api/v1/documents/:id/results
func (h *DocumentHandler) Results(c *gin.Context) {
	recs, err := h.results.ListByDocument(c.Request.Context(), c.Param("id"), c.Query("subdocument_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, recs)
}
