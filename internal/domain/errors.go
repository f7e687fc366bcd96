package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrPageNotFound      = errors.New("page not found")
	ErrCaseNotFound      = errors.New("case not found")
	ErrConfigNotFound    = errors.New("extraction config not found")
	ErrSchemaNotFound    = errors.New("output schema not registered")
	ErrRetrieverNotFound = errors.New("retriever not registered")
	ErrNoPages           = errors.New("document has no pages")
	ErrNoSubDocument     = errors.New("subdocument not found on document")
	ErrDuplicateField    = errors.New("duplicate field name across groups")
	ErrInvalidInput      = errors.New("invalid input")
)

// FieldConsistencyError reports field dependency declarations that name
// fields absent from the loaded set without a cross-document-type
// qualifier.
type FieldConsistencyError struct {
	CaseType     string
	DocumentType string
	Missing      []string
}

func (e *FieldConsistencyError) Error() string {
	return fmt.Sprintf("field config %s/%s: inputs reference unknown fields: %s",
		e.CaseType, e.DocumentType, strings.Join(e.Missing, ", "))
}

// ValidationError marks an LLM response that failed schema decoding. The
// invoker retries these; transport errors pass through untouched.
type ValidationError struct {
	Schema string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("response failed validation against schema %q: %v", e.Schema, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
