package review

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/metrics"
	"github.com/example/rugstore/pkg/models"
)

// Repository stores reviews. Create must reject a second review for the same
// (user, product) pair as a conflict.
type Repository interface {
	Create(ctx context.Context, r *models.Review) error
	Find(ctx context.Context, userID, productID string) (models.Review, bool, error)
	ListByProduct(ctx context.Context, productID string) ([]models.Review, error)
}

type OrderHistory interface {
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
}

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoPurchase      Reason = "no_purchase"
	ReasonAlreadyReviewed Reason = "already_reviewed"
)

type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
}

type Submission struct {
	Rating     int    `json:"rating"`
	Text       string `json:"text"`
	AuthorName string `json:"authorName"`
}

type Summary struct {
	Average      decimal.Decimal `json:"average"`
	Count        int             `json:"count"`
	Distribution map[int]int     `json:"distribution"`
}

// Gate decides who may review what and keeps the one-review-per-purchase
// rule.
type Gate struct {
	reviews       Repository
	orders        OrderHistory
	minTextLength int
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

func NewGate(reviews Repository, orders OrderHistory, minTextLength int, m *metrics.Metrics, logger *zap.Logger) *Gate {
	return &Gate{
		reviews:       reviews,
		orders:        orders,
		minTextLength: minTextLength,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// Eligibility checks the user's order history for the product, then the
// existing reviews.
func (g *Gate) Eligibility(ctx context.Context, userID, productID string) (Eligibility, error) {
	orders, err := g.orders.ListByUser(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}
	purchased := false
	for _, o := range orders {
		if o.Contains(productID) {
			purchased = true
			break
		}
	}
	if !purchased {
		return Eligibility{Reason: ReasonNoPurchase}, nil
	}

	_, found, err := g.reviews.Find(ctx, userID, productID)
	if err != nil {
		return Eligibility{}, err
	}
	if found {
		return Eligibility{Reason: ReasonAlreadyReviewed}, nil
	}
	return Eligibility{Eligible: true}, nil
}

// Submit stores a shopper review after validating it and checking
// eligibility.
func (g *Gate) Submit(ctx context.Context, userID, productID string, s Submission) (models.Review, error) {
	const op = "review.Submit"
	if userID == "" {
		return models.Review{}, errs.E(op, errs.KindUnauthorized, fmt.Errorf("sign in to write a review"))
	}
	s, err := g.check(op, s)
	if err != nil {
		return models.Review{}, err
	}

	el, err := g.Eligibility(ctx, userID, productID)
	if err != nil {
		return models.Review{}, err
	}
	switch el.Reason {
	case ReasonNoPurchase:
		return models.Review{}, errs.E(op, errs.KindIneligible, errs.ErrNoPurchase)
	case ReasonAlreadyReviewed:
		return models.Review{}, errs.Conflict(op, errs.ErrAlreadyReviewed)
	}

	return g.store(ctx, op, userID, productID, s, false)
}

// SubmitAsAdmin stores an operator-authored review. It skips the purchase
// check and uses a fresh synthetic author id each time.
func (g *Gate) SubmitAsAdmin(ctx context.Context, productID string, s Submission) (models.Review, error) {
	const op = "review.SubmitAsAdmin"
	s, err := g.check(op, s)
	if err != nil {
		return models.Review{}, err
	}
	if s.AuthorName == "" {
		return models.Review{}, errs.Validationf(op, "authorName", "author name is required")
	}
	return g.store(ctx, op, "admin-"+uuid.NewString(), productID, s, true)
}

func (g *Gate) check(op string, s Submission) (Submission, error) {
	s.Text = strings.TrimSpace(s.Text)
	s.AuthorName = strings.TrimSpace(s.AuthorName)
	if s.Rating < 1 || s.Rating > 5 {
		return s, errs.Validationf(op, "rating", "rating must be between 1 and 5")
	}
	if utf8.RuneCountInString(s.Text) < g.minTextLength {
		return s, errs.Validationf(op, "text", "review must be at least %d characters", g.minTextLength)
	}
	return s, nil
}

func (g *Gate) store(ctx context.Context, op, userID, productID string, s Submission, admin bool) (models.Review, error) {
	r := &models.Review{
		ID:            uuid.NewString(),
		UserID:        userID,
		ProductID:     productID,
		AuthorName:    s.AuthorName,
		Rating:        s.Rating,
		Text:          s.Text,
		AdminAuthored: admin,
		CreatedAt:     g.now().UTC(),
	}
	if err := g.reviews.Create(ctx, r); err != nil {
		if errs.Is(err, errs.KindConflict) {
			return models.Review{}, errs.Conflict(op, errs.ErrAlreadyReviewed)
		}
		return models.Review{}, err
	}

	g.metrics.ReviewSubmitted(admin)
	g.logger.Info("Review stored",
		zap.String("review_id", r.ID),
		zap.String("product_id", productID),
		zap.Int("rating", r.Rating),
		zap.Bool("admin", admin))
	return *r, nil
}

// List returns the product's reviews and their summary.
func (g *Gate) List(ctx context.Context, productID string) ([]models.Review, Summary, error) {
	reviews, err := g.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, Summary{}, err
	}
	return reviews, Summarize(reviews), nil
}

// Summarize averages the ratings to one decimal place, rounding half away
// from zero, and counts each star value.
func Summarize(reviews []models.Review) Summary {
	s := Summary{Average: decimal.Zero, Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	if len(reviews) == 0 {
		return s
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
		s.Distribution[r.Rating]++
	}
	s.Count = len(reviews)
	s.Average = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(s.Count))).Round(1)
	return s
}
