package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"docsift/internal/domain"
	"docsift/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents (
		id, file_name, document_type, status, file_sha256, page_count,
		elements, subdocuments, split_meta, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11
	)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.FileName, doc.DocumentType, doc.Status, doc.FileSHA256, doc.PageCount,
		doc.Elements, doc.SubDocuments, doc.SplitMeta, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM documents WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.GetByIDs: %w", err)
	}
	var docs []domain.Document
	err = r.db.SelectContext(ctx, &docs, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.GetByIDs: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) UpdateSubDocuments(ctx context.Context, docID string, subs domain.SubDocumentList, meta *domain.SplitMeta) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET subdocuments = $1, split_meta = $2, updated_at = $3
		 WHERE id = $4`,
		subs, meta, time.Now().UTC(), docID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateSubDocuments: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, docID, status string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now().UTC(), docID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
