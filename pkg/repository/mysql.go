package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// OpenMySQL connects gorm to MySQL and migrates the order and review tables.
func OpenMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Order{}, &models.Review{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// OrderStore is the gorm-backed order table. The primary key and the unique
// idempotency key reject duplicate placements.
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Create(ctx context.Context, o *models.Order) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Conflict("orders.Create", fmt.Errorf("order %s: %w", o.ID, errs.ErrDuplicate))
		}
		return errs.Persistence("orders.Create", fmt.Errorf("failed to create order: %w", err))
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (models.Order, error) {
	return s.first(ctx, "orders.Get", "id = ?", id)
}

func (s *OrderStore) GetByIdempotencyKey(ctx context.Context, key string) (models.Order, error) {
	return s.first(ctx, "orders.GetByIdempotencyKey", "idempotency_key = ?", key)
}

func (s *OrderStore) first(ctx context.Context, op, query string, arg any) (models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where(query, arg).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, errs.NotFoundf(op, "order not found")
		}
		return models.Order{}, errs.Persistence(op, fmt.Errorf("failed to get order: %w", err))
	}
	return order, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, errs.Persistence("orders.ListByUser", fmt.Errorf("failed to list orders: %w", err))
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to the next. It fails with a
// conflict if the order changed status in the meantime.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (models.Order, error) {
	const op = "orders.UpdateStatus"
	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return models.Order{}, errs.Persistence(op, fmt.Errorf("failed to update order: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return models.Order{}, errs.Conflict(op, fmt.Errorf("order %s is no longer %s", id, from))
	}
	return s.Get(ctx, id)
}

// ReviewStore is the gorm-backed review table.
type ReviewStore struct {
	db *gorm.DB
}

func NewReviewStore(db *gorm.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Create(ctx context.Context, r *models.Review) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Conflict("reviews.Create", errs.ErrAlreadyReviewed)
		}
		return errs.Persistence("reviews.Create", fmt.Errorf("failed to create review: %w", err))
	}
	return nil
}

func (s *ReviewStore) Find(ctx context.Context, userID, productID string) (models.Review, bool, error) {
	var review models.Review
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Review{}, false, nil
		}
		return models.Review{}, false, errs.Persistence("reviews.Find", fmt.Errorf("failed to find review: %w", err))
	}
	return review, true, nil
}

func (s *ReviewStore) ListByProduct(ctx context.Context, productID string) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, errs.Persistence("reviews.ListByProduct", fmt.Errorf("failed to list reviews: %w", err))
	}
	return reviews, nil
}
