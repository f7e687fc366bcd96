package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"docsift/internal/domain"
	"docsift/internal/llm"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var consistency *domain.FieldConsistencyError
	var rateLimit *llm.RateLimitError
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"
	case errors.Is(err, domain.ErrPageNotFound):
		return http.StatusNotFound, "PAGE_NOT_FOUND", "page not found"
	case errors.Is(err, domain.ErrCaseNotFound):
		return http.StatusNotFound, "CASE_NOT_FOUND", "case not found"
	case errors.Is(err, domain.ErrNoSubDocument):
		return http.StatusNotFound, "SUBDOCUMENT_NOT_FOUND", "sub-document not found; split the document first"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrConfigNotFound):
		return http.StatusBadRequest, "CONFIG_NOT_FOUND", "no extraction configuration for this case and document type"
	case errors.Is(err, domain.ErrSchemaNotFound):
		return http.StatusBadRequest, "SCHEMA_NOT_FOUND", "unknown output schema"
	case errors.Is(err, domain.ErrRetrieverNotFound):
		return http.StatusBadRequest, "RETRIEVER_NOT_FOUND", "unknown retriever"
	case errors.Is(err, domain.ErrNoPages):
		return http.StatusBadRequest, "NO_PAGES", "document has no pages"
	case errors.Is(err, domain.ErrDuplicateField):
		return http.StatusBadRequest, "DUPLICATE_FIELD", "field defined in more than one group"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST", err.Error()
	case errors.As(err, &consistency):
		return http.StatusBadRequest, "INCONSISTENT_FIELDS", consistency.Error()
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests, "RATE_LIMITED", "LLM provider rate limit exceeded"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] internal error: %v", requestID, err)
	}
	RespondError(c, status, code, msg)
}
