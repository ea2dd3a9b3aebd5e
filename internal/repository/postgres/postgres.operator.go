// FilePath: internal/repository/postgres/postgres.operator.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

type OperatorRepo struct {
	PostgresBaseRepo
}

func NewOperatorRepository(db database.DB) *OperatorRepo {
	return &OperatorRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *OperatorRepo) Get(ctx context.Context, id string) (*models.Operator, error) {
	operator := &models.Operator{}
	query := `SELECT * FROM operators WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, operator, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("operator not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get operator", err)
	}
	return operator, nil
}
