package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/example/rugstore/pkg/models"
)

const (
	DefaultSearchLimit  = 20
	DefaultSuggestLimit = 8
)

// Search matches q against product names and descriptions, ignoring case.
// Name-prefix matches come first, then other name matches, then description
// matches; each group is ordered by name. An empty query lists everything.
func (c *Catalog) Search(ctx context.Context, q string, limit int) ([]models.Product, error) {
	products, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(products, q, limit), nil
}

// Suggest returns distinct product names for autocomplete.
func (c *Catalog) Suggest(ctx context.Context, q string, limit int) ([]string, error) {
	if strings.TrimSpace(q) == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	products, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, limit)
	seen := make(map[string]bool)
	for _, p := range Rank(products, q, 0) {
		key := strings.ToLower(p.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, p.Name)
		if len(names) == limit {
			break
		}
	}
	return names, nil
}

// Rank filters and orders products for query q. limit <= 0 means no limit.
func Rank(products []models.Product, q string, limit int) []models.Product {
	q = strings.ToLower(strings.TrimSpace(q))

	type hit struct {
		product models.Product
		score   int
	}
	hits := make([]hit, 0, len(products))
	for _, p := range products {
		name := strings.ToLower(p.Name)
		switch {
		case q == "":
			hits = append(hits, hit{p, 0})
		case strings.HasPrefix(name, q):
			hits = append(hits, hit{p, 0})
		case strings.Contains(name, q):
			hits = append(hits, hit{p, 1})
		case strings.Contains(strings.ToLower(p.Description), q):
			hits = append(hits, hit{p, 2})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score < hits[j].score
		}
		return strings.ToLower(hits[i].product.Name) < strings.ToLower(hits[j].product.Name)
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]models.Product, len(hits))
	for i, h := range hits {
		out[i] = h.product
	}
	return out
}
