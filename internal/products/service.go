package product

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
	"github.com/google/uuid"
)

// MinQueryLength is the shortest query that reaches the catalog.
const MinQueryLength = 2

// Service exposes register-side catalog search.
type Service interface {
	Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]types.ProductSummary, error)
}

type service struct {
	repo Repository
	cfg  config.SearchConfig
}

func NewService(repo Repository, cfg config.SearchConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	return &service{repo: repo, cfg: cfg}, nil
}

// Search returns at most the clamped limit of products. Queries shorter than
// MinQueryLength return an empty list without touching the catalog.
func (s *service) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]types.ProductSummary, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []types.ProductSummary{}, nil
	}
	switch {
	case limit <= 0:
		limit = s.cfg.DefaultLimit
	case limit > s.cfg.MaxLimit:
		limit = s.cfg.MaxLimit
	}

	rows, err := s.repo.Search(ctx, tenantID, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	out := make([]types.ProductSummary, 0, len(rows))
	for i := range rows {
		out = append(out, toSummary(&rows[i]))
	}
	return out, nil
}

func toSummary(p *models.Product) types.ProductSummary {
	return types.ProductSummary{
		ID:      p.ID,
		Name:    p.Name,
		SKU:     p.SKU,
		Barcode: p.Barcode,
		Price:   p.Price,
		Stock:   p.Stock,
	}
}
