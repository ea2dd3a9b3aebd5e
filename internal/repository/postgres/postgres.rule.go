// FilePath: internal/repository/postgres/postgres.rule.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

type RuleRepo struct {
	PostgresBaseRepo
}

func NewRuleRepository(db database.DB) *RuleRepo {
	return &RuleRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *RuleRepo) ActiveForCrossing(ctx context.Context, crossingID string) ([]*models.MaintenanceRule, error) {
	rules := []*models.MaintenanceRule{}
	query := `
		SELECT * FROM maintenance_rules
		WHERE active AND (crossing_id = $1 OR crossing_id IS NULL)
		ORDER BY priority, name`

	err := r.db.GetDB().SelectContext(ctx, &rules, query, crossingID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load active rules", err)
	}
	return rules, nil
}

func (r *RuleRepo) ActiveDateScoped(ctx context.Context) ([]*models.MaintenanceRule, error) {
	rules := []*models.MaintenanceRule{}
	query := `
		SELECT * FROM maintenance_rules
		WHERE active AND start_date IS NOT NULL
		ORDER BY priority, name`

	err := r.db.GetDB().SelectContext(ctx, &rules, query)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load date-scoped rules", err)
	}
	return rules, nil
}

func (r *RuleRepo) Get(ctx context.Context, id string) (*models.MaintenanceRule, error) {
	rule := &models.MaintenanceRule{}
	query := `SELECT * FROM maintenance_rules WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, rule, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("rule not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get rule", err)
	}
	return rule, nil
}
