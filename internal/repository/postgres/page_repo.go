package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"docsift/internal/domain"
	"docsift/internal/port"
)

type pageRepo struct {
	db *sqlx.DB
}

// NewPageRepo creates a new PostgreSQL-backed PageRepository.
func NewPageRepo(db *sqlx.DB) port.PageRepository {
	return &pageRepo{db: db}
}

func (r *pageRepo) CreateBatch(ctx context.Context, pages []domain.DocumentPage) error {
	if len(pages) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO document_pages (
			id, document_id, page_number, content, content_markdown, content_html,
			width, height, unit
		) VALUES (
			:id, :document_id, :page_number, :content, :content_markdown, :content_html,
			:width, :height, :unit
		)`, pages)
	if err != nil {
		return fmt.Errorf("pageRepo.CreateBatch: %w", err)
	}
	return nil
}

// pageColumns skips content_tsv, which exists only for search.
const pageColumns = `id, document_id, page_number, content, content_markdown, content_html,
	width, height, unit`

func (r *pageRepo) ListByDocument(ctx context.Context, docID string) ([]domain.DocumentPage, error) {
	var pages []domain.DocumentPage
	err := r.db.SelectContext(ctx, &pages,
		"SELECT "+pageColumns+" FROM document_pages WHERE document_id = $1 ORDER BY page_number", docID)
	if err != nil {
		return nil, fmt.Errorf("pageRepo.ListByDocument: %w", err)
	}
	return pages, nil
}

func (r *pageRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.DocumentPage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+pageColumns+" FROM document_pages WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("pageRepo.GetByIDs: %w", err)
	}
	var pages []domain.DocumentPage
	err = r.db.SelectContext(ctx, &pages, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("pageRepo.GetByIDs: %w", err)
	}
	return pages, nil
}

// SearchFullText ranks pages against the query with the stored generated
// tsvector column. An empty docIDs slice searches all documents.
func (r *pageRepo) SearchFullText(ctx context.Context, docIDs []string, query string, limit int) ([]domain.DocumentPage, error) {
	if limit <= 0 {
		limit = 10
	}

	base := "SELECT " + pageColumns + ` FROM document_pages
		 WHERE content_tsv @@ plainto_tsquery('english', ?)`
	args := []interface{}{query}
	if len(docIDs) > 0 {
		base += " AND document_id IN (?)"
		args = append(args, docIDs)
	}
	base += " ORDER BY ts_rank(content_tsv, plainto_tsquery('english', ?)) DESC LIMIT ?"
	args = append(args, query, limit)

	q, expanded, err := sqlx.In(base, args...)
	if err != nil {
		return nil, fmt.Errorf("pageRepo.SearchFullText: %w", err)
	}
	var pages []domain.DocumentPage
	err = r.db.SelectContext(ctx, &pages, r.db.Rebind(q), expanded...)
	if err != nil {
		return nil, fmt.Errorf("pageRepo.SearchFullText: %w", err)
	}
	return pages, nil
}
