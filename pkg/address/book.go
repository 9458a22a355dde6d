package address

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// Repository persists one profile document per user. Append must add the
// address and point the last-used id at it in a single document update.
type Repository interface {
	Load(ctx context.Context, userID string) (models.UserProfile, error)
	Append(ctx context.Context, userID string, addr models.Address) error
}

// Book is the append-only address book of signed-in users.
type Book struct {
	repo   Repository
	logger *zap.Logger
}

func NewBook(repo Repository, logger *zap.Logger) *Book {
	return &Book{repo: repo, logger: logger}
}

// Profile returns the user's saved addresses. A user who never saved one
// gets an empty profile.
func (b *Book) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	if userID == "" {
		return models.UserProfile{}, errs.Validationf("address.Profile", "userId", "user id is required")
	}
	return b.repo.Load(ctx, userID)
}

// Add validates addr, gives it a fresh id and stores it as last used.
func (b *Book) Add(ctx context.Context, userID string, addr models.Address) (models.Address, error) {
	const op = "address.Add"
	if userID == "" {
		return models.Address{}, errs.Validationf(op, "userId", "user id is required")
	}
	addr = trim(addr)
	if err := addr.Validate(); err != nil {
		return models.Address{}, err
	}
	addr.ID = uuid.NewString()

	if err := b.repo.Append(ctx, userID, addr); err != nil {
		return models.Address{}, err
	}

	b.logger.Info("Address saved", zap.String("user_id", userID), zap.String("address_id", addr.ID))
	return addr, nil
}

func trim(a models.Address) models.Address {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Pincode = strings.TrimSpace(a.Pincode)
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}
