package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsift/internal/domain"
	"docsift/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestExtractHandler(t *testing.T) {
	extractor := new(mocks.MockExtractor)
	extractor.On("Extract", mock.Anything, mock.MatchedBy(func(req domain.ExtractionRequest) bool {
		return len(req.DocumentIDs) == 1 && req.DocumentIDs[0] == "doc-1"
	})).Return(&domain.ExtractionResponse{
		DocumentID: "doc-1",
		Results:    map[string]domain.FieldResult{"total": {Content: "42"}},
	}, nil)

	r := gin.New()
	r.POST("/extract", NewExtractHandler(extractor).Extract)

	w := performJSON(r, http.MethodPost, "/extract", gin.H{"document_ids": []string{"doc-1"}})
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	extractor.AssertExpectations(t)
}

func TestExtractHandlerBadJSON(t *testing.T) {
	r := gin.New()
	r.POST("/extract", NewExtractHandler(new(mocks.MockExtractor)).Extract)

	req := httptest.NewRequest(http.MethodPost, "/extract", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeResponse(t, w).Error.Code)
}

func TestExtractHandlerDomainError(t *testing.T) {
	extractor := new(mocks.MockExtractor)
	extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, domain.ErrDocumentNotFound)

	r := gin.New()
	r.POST("/extract", NewExtractHandler(extractor).Extract)

	w := performJSON(r, http.MethodPost, "/extract", gin.H{"document_ids": []string{"missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "DOCUMENT_NOT_FOUND", decodeResponse(t, w).Error.Code)
}

func TestSplitHandler(t *testing.T) {
	splitter := new(mocks.MockSplitter)
	splitter.On("Split", mock.Anything, domain.SplitRequest{DocumentID: "doc-1", CaseType: "insurance"}).
		Return(&domain.SplitClassifyResult{
			Segments: []domain.SplitSegment{{DocumentType: "invoice", PageNumbers: []int{1, 2}}},
		}, nil)

	r := gin.New()
	r.POST("/split", NewSplitHandler(splitter).Split)

	w := performJSON(r, http.MethodPost, "/split", gin.H{"document_id": "doc-1", "case_type": "insurance"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
	splitter.AssertExpectations(t)
}

func TestSplitHandlerRequiresDocumentID(t *testing.T) {
	splitter := new(mocks.MockSplitter)

	r := gin.New()
	r.POST("/split", NewSplitHandler(splitter).Split)

	w := performJSON(r, http.MethodPost, "/split", gin.H{"case_type": "insurance"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	splitter.AssertNotCalled(t, "Split", mock.Anything, mock.Anything)
}

func TestMapDomainErrorConsistency(t *testing.T) {
	err := &domain.FieldConsistencyError{CaseType: "generic", DocumentType: "invoice", Missing: []string{"vendor"}}
	status, code, _ := MapDomainError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INCONSISTENT_FIELDS", code)
}
