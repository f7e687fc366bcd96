package port

import (
	"context"

	"docsift/internal/domain"
)

// Extractor runs the field extraction pipeline.
type Extractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResponse, error)
}

// Splitter runs split/classify over a document's pages.
type Splitter interface {
	Split(ctx context.Context, req domain.SplitRequest) (*domain.SplitClassifyResult, error)
}

// RetrieverFactory builds a retriever from its configuration.
type RetrieverFactory interface {
	Build(cfg domain.RetrieverConfig) (Retriever, error)
}
