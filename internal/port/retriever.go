package port

import (
	"context"

	"docsift/internal/domain"
)

// RetrieveInput scopes a retrieval run to a set of documents and,
// optionally, to specific pages within them.
type RetrieveInput struct {
	Query       string
	DocumentIDs []string
	PageIDs     []string
}

// Retriever selects the pages that form the LLM context for one
// extraction group.
type Retriever interface {
	Retrieve(ctx context.Context, in RetrieveInput) ([]domain.DocumentPage, error)
}
