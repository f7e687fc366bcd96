package port

import (
	"context"

	"docsift/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error)
	UpdateSubDocuments(ctx context.Context, docID string, subs domain.SubDocumentList, meta *domain.SplitMeta) error
	UpdateStatus(ctx context.Context, docID, status string) error
}

// PageRepository defines the contract for document page persistence.
type PageRepository interface {
	CreateBatch(ctx context.Context, pages []domain.DocumentPage) error
	ListByDocument(ctx context.Context, docID string) ([]domain.DocumentPage, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.DocumentPage, error)
	SearchFullText(ctx context.Context, docIDs []string, query string, limit int) ([]domain.DocumentPage, error)
}

// FieldResultRepository defines the contract for extracted field result
// persistence. Upsert keys on (document_id, subdocument_id, field_name) so
// repeated extraction overwrites in place.
type FieldResultRepository interface {
	Upsert(ctx context.Context, rec *domain.FieldResultRecord) error
	UpsertBatch(ctx context.Context, recs []domain.FieldResultRecord) error
	Get(ctx context.Context, documentID, subdocumentID, fieldName string) (*domain.FieldResultRecord, error)
	ListByDocument(ctx context.Context, documentID, subdocumentID string) ([]domain.FieldResultRecord, error)
}

// CaseRepository defines the contract for case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
}
