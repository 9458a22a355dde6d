package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
)

// The memory stores back the storefront in development mode and in tests.
// They keep the uniqueness rules of the real stores.

type MemoryProducts struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryProducts(seed ...models.Product) *MemoryProducts {
	m := &MemoryProducts{products: make(map[string]models.Product)}
	for _, p := range seed {
		m.products[p.ID] = p.Clone()
	}
	return m
}

func (m *MemoryProducts) List(_ context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryProducts) Get(_ context.Context, id string) (models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return models.Product{}, errs.NotFoundf("products.Get", "product %s not found", id)
	}
	return p.Clone(), nil
}

func (m *MemoryProducts) Create(_ context.Context, p models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return errs.Conflict("products.Create", fmt.Errorf("product %s already exists: %w", p.ID, errs.ErrDuplicate))
	}
	m.products[p.ID] = p.Clone()
	return nil
}

func (m *MemoryProducts) Update(_ context.Context, p models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return errs.NotFoundf("products.Update", "product %s not found", p.ID)
	}
	m.products[p.ID] = p.Clone()
	return nil
}

type MemoryUsers struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{profiles: make(map[string]models.UserProfile)}
}

func (m *MemoryUsers) Load(_ context.Context, userID string) (models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.UserProfile{UserID: userID}, nil
	}
	p.Addresses = append([]models.Address(nil), p.Addresses...)
	return p, nil
}

func (m *MemoryUsers) Append(_ context.Context, userID string, addr models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[userID]
	p.UserID = userID
	p.Addresses = append(append([]models.Address(nil), p.Addresses...), addr)
	p.LastUsedAddressID = addr.ID
	m.profiles[userID] = p
	return nil
}

type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]models.Order
	byKey  map[string]string
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]models.Order), byKey: make(map[string]string)}
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (m *MemoryOrders) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return errs.Conflict("orders.Create", fmt.Errorf("order %s: %w", o.ID, errs.ErrDuplicate))
	}
	if o.IdempotencyKey != "" {
		if _, ok := m.byKey[o.IdempotencyKey]; ok {
			return errs.Conflict("orders.Create", fmt.Errorf("idempotency key reused: %w", errs.ErrDuplicate))
		}
		m.byKey[o.IdempotencyKey] = o.ID
	}
	m.orders[o.ID] = copyOrder(*o)
	return nil
}

func (m *MemoryOrders) Get(_ context.Context, id string) (models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, errs.NotFoundf("orders.Get", "order not found")
	}
	return copyOrder(o), nil
}

func (m *MemoryOrders) GetByIdempotencyKey(ctx context.Context, key string) (models.Order, error) {
	m.mu.RLock()
	id, ok := m.byKey[key]
	m.mu.RUnlock()
	if !ok {
		return models.Order{}, errs.NotFoundf("orders.GetByIdempotencyKey", "order not found")
	}
	return m.Get(ctx, id)
}

func (m *MemoryOrders) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryOrders) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, errs.NotFoundf("orders.UpdateStatus", "order not found")
	}
	if o.Status != from {
		return models.Order{}, errs.Conflict("orders.UpdateStatus", fmt.Errorf("order %s is no longer %s", id, from))
	}
	o.Status = to
	m.orders[id] = o
	return copyOrder(o), nil
}

type MemoryReviews struct {
	mu      sync.RWMutex
	reviews []models.Review
}

func NewMemoryReviews() *MemoryReviews {
	return &MemoryReviews{}
}

func (m *MemoryReviews) Create(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			return errs.Conflict("reviews.Create", errs.ErrAlreadyReviewed)
		}
	}
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *MemoryReviews) Find(_ context.Context, userID, productID string) (models.Review, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reviews {
		if r.UserID == userID && r.ProductID == productID {
			return r, true, nil
		}
	}
	return models.Review{}, false, nil
}

func (m *MemoryReviews) ListByProduct(_ context.Context, productID string) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Review
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if m.reviews[i].ProductID == productID {
			out = append(out, m.reviews[i])
		}
	}
	return out, nil
}

type MemoryIntents struct {
	mu      sync.Mutex
	intents map[string]order.Intent
}

func NewMemoryIntents() *MemoryIntents {
	return &MemoryIntents{intents: make(map[string]order.Intent)}
}

func (m *MemoryIntents) Get(_ context.Context, key string) (order.Intent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.intents[key]
	return i, ok, nil
}

func (m *MemoryIntents) PutIfAbsent(_ context.Context, key string, intent order.Intent) (order.Intent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.intents[key]; ok {
		return existing, false, nil
	}
	m.intents[key] = intent
	return intent, true, nil
}

// MemoryAudit collects audit entries in memory.
type MemoryAudit struct {
	mu      sync.Mutex
	entries []AuditLog
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Record(_ context.Context, action, entityID string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, AuditLog{Action: action, EntityID: entityID, Data: data, CreatedAt: time.Now().UTC()})
	return nil
}

// GetAuditLogs returns the entries for entityID, newest first.
func (m *MemoryAudit) GetAuditLogs(_ context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var logs []*AuditLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].EntityID != entityID {
			continue
		}
		entry := m.entries[i]
		logs = append(logs, &entry)
		if limit > 0 && int64(len(logs)) == limit {
			break
		}
	}
	return logs, nil
}

func (m *MemoryAudit) Entries() []AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditLog(nil), m.entries...)
}
