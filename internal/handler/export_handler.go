package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"docsift/internal/export"
	"docsift/internal/port"
)

// ExportHandler streams extraction results as an Excel workbook.
type ExportHandler struct {
	docs    port.DocumentRepository
	results port.FieldResultRepository
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(docs port.DocumentRepository, results port.FieldResultRepository) *ExportHandler {
	return &ExportHandler{docs: docs, results: results}
}

// Export handles GET /api/v1/documents/:id/export
func (h *ExportHandler) Export(c *gin.Context) {
	docID := c.Param("id")

	doc, err := h.docs.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	recs, err := h.results.ListByDocument(c.Request.Context(), docID, c.Query("subdocument_id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	f, err := export.BuildWorkbook(doc, recs)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	filename := export.BuildFilename(doc.FileName)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := f.Write(c.Writer); err != nil {
		// Headers are already sent; log and abort.
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] writing workbook: %v", requestID, err)
		c.Abort()
	}
}
