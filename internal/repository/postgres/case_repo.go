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

type caseRepo struct {
	db *sqlx.DB
}

// NewCaseRepo creates a new PostgreSQL-backed CaseRepository.
func NewCaseRepo(db *sqlx.DB) port.CaseRepository {
	return &caseRepo{db: db}
}

func (r *caseRepo) Create(ctx context.Context, c *domain.Case) error {
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cases (id, name, type, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Type, c.Description, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("caseRepo.Create: %w", err)
	}
	return nil
}

func (r *caseRepo) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	var c domain.Case
	err := r.db.GetContext(ctx, &c, "SELECT * FROM cases WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("caseRepo.GetByID: %w", err)
	}
	return &c, nil
}
