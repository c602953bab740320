package product

import (
	"context"
	"strings"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads the tenant catalog.
type Repository interface {
	Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

const rankClause = `CASE
  WHEN LOWER(sku) = ? OR barcode = ? THEN 0
  WHEN LOWER(name) LIKE ? ESCAPE '\' THEN 1
  ELSE 2
END`

// Search matches name or sku by substring and barcode exactly. Exact code
// matches rank first, then name prefixes, then the rest by name.
func (r *repository) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Product, error) {
	raw := strings.TrimSpace(query)
	lowered := strings.ToLower(raw)
	contains := "%" + escapeLike(lowered) + "%"
	prefix := escapeLike(lowered) + "%"

	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(sku) LIKE ? ESCAPE '\' OR barcode = ?)`, contains, contains, raw).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                rankClause + ", name ASC, id ASC",
			Vars:               []any{lowered, raw, prefix},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
