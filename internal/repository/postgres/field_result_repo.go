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

type fieldResultRepo struct {
	db *sqlx.DB
}

// NewFieldResultRepo creates a new PostgreSQL-backed FieldResultRepository.
func NewFieldResultRepo(db *sqlx.DB) port.FieldResultRepository {
	return &fieldResultRepo{db: db}
}

const upsertFieldResult = `INSERT INTO field_results (
		document_id, document_type, subdocument_id, case_type, field_name,
		result, updated_at
	) VALUES (
		:document_id, :document_type, :subdocument_id, :case_type, :field_name,
		:result, :updated_at
	)
	ON CONFLICT (document_id, subdocument_id, field_name) DO UPDATE SET
		document_type = EXCLUDED.document_type,
		case_type = EXCLUDED.case_type,
		result = EXCLUDED.result,
		updated_at = EXCLUDED.updated_at`

func (r *fieldResultRepo) Upsert(ctx context.Context, rec *domain.FieldResultRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, upsertFieldResult, rec)
	if err != nil {
		return fmt.Errorf("fieldResultRepo.Upsert: %w", err)
	}
	return nil
}

func (r *fieldResultRepo) UpsertBatch(ctx context.Context, recs []domain.FieldResultRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range recs {
		recs[i].UpdatedAt = now
	}
	_, err := r.db.NamedExecContext(ctx, upsertFieldResult, recs)
	if err != nil {
		return fmt.Errorf("fieldResultRepo.UpsertBatch: %w", err)
	}
	return nil
}

func (r *fieldResultRepo) Get(ctx context.Context, documentID, subdocumentID, fieldName string) (*domain.FieldResultRecord, error) {
	var rec domain.FieldResultRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM field_results
		 WHERE document_id = $1 AND subdocument_id = $2 AND field_name = $3`,
		documentID, subdocumentID, fieldName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fieldResultRepo.Get: %w", err)
	}
	return &rec, nil
}

func (r *fieldResultRepo) ListByDocument(ctx context.Context, documentID, subdocumentID string) ([]domain.FieldResultRecord, error) {
	var recs []domain.FieldResultRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM field_results
		 WHERE document_id = $1 AND subdocument_id = $2
		 ORDER BY field_name`,
		documentID, subdocumentID)
	if err != nil {
		return nil, fmt.Errorf("fieldResultRepo.ListByDocument: %w", err)
	}
	return recs, nil
}
