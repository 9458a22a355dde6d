package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// Repository is the durable product store.
type Repository interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Create(ctx context.Context, p models.Product) error
	Update(ctx context.Context, p models.Product) error
}

// Cache holds the full product list between writes. A miss is reported as
// ok == false, not as an error.
type Cache interface {
	Products(ctx context.Context) ([]models.Product, bool, error)
	SetProducts(ctx context.Context, products []models.Product) error
	InvalidateProducts(ctx context.Context) error
}

type Catalog struct {
	repo   Repository
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Catalog. cache may be nil.
func New(repo Repository, cache Cache, logger *zap.Logger) *Catalog {
	return &Catalog{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// All returns every product, served from the cache when it is warm.
func (c *Catalog) All(ctx context.Context) ([]models.Product, error) {
	if c.cache != nil {
		products, ok, err := c.cache.Products(ctx)
		if err != nil {
			c.logger.Warn("Catalog cache read failed", zap.Error(err))
		} else if ok {
			return products, nil
		}
	}

	products, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetProducts(ctx, products); err != nil {
			c.logger.Warn("Catalog cache write failed", zap.Error(err))
		}
	}
	return products, nil
}

// Get reads one product from the store. Pricing decisions always go through
// here so they never see a stale cache entry.
func (c *Catalog) Get(ctx context.Context, id string) (models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return models.Product{}, errs.Validationf("catalog.Get", "productId", "product id is required")
	}
	return c.repo.Get(ctx, id)
}

func (c *Catalog) Create(ctx context.Context, p models.Product) (models.Product, error) {
	p = normalize(p)
	if err := Validate(p); err != nil {
		return models.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := c.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := c.repo.Create(ctx, p); err != nil {
		return models.Product{}, err
	}
	c.invalidate(ctx)

	c.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Update replaces the editable fields of an existing product.
func (c *Catalog) Update(ctx context.Context, id string, p models.Product) (models.Product, error) {
	existing, err := c.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}

	p = normalize(p)
	p.ID = existing.ID
	if err := Validate(p); err != nil {
		return models.Product{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = c.now().UTC()

	if err := c.repo.Update(ctx, p); err != nil {
		return models.Product{}, err
	}
	c.invalidate(ctx)

	c.logger.Info("Product updated", zap.String("product_id", p.ID))
	return p, nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateProducts(ctx); err != nil {
		c.logger.Warn("Catalog cache invalidation failed", zap.Error(err))
	}
}

func normalize(p models.Product) models.Product {
	p.Name = strings.TrimSpace(p.Name)
	sizes := make([]string, 0, len(p.Sizes))
	for _, s := range p.Sizes {
		sizes = append(sizes, strings.TrimSpace(s))
	}
	if len(sizes) == 0 {
		sizes = nil
	}
	p.Sizes = sizes
	return p
}

// Validate checks a product before it is written.
func Validate(p models.Product) error {
	const op = "catalog.Validate"
	if p.Name == "" {
		return errs.Validationf(op, "name", "name is required")
	}
	if !p.Price.IsPositive() {
		return errs.Validationf(op, "price", "price must be greater than zero")
	}

	seen := make(map[string]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		if s == "" {
			return errs.Validationf(op, "sizes", "size labels cannot be empty")
		}
		if seen[s] {
			return errs.Validationf(op, "sizes", "size %q is listed twice", s)
		}
		seen[s] = true
	}

	for size, price := range p.SizePrices {
		if !seen[size] {
			return errs.Validationf(op, "sizePrices", "size %q is not offered", size)
		}
		if !price.IsPositive() {
			return errs.Validationf(op, "sizePrices", "price for size %q must be greater than zero", size)
		}
	}
	for size, price := range p.SizeOriginalPrices {
		if !seen[size] {
			return errs.Validationf(op, "sizeOriginalPrices", "size %q is not offered", size)
		}
		if !price.IsPositive() {
			return errs.Validationf(op, "sizeOriginalPrices", "original price for size %q must be greater than zero", size)
		}
	}
	return nil
}
