package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// ProductStore keeps the catalog in MongoDB. Money is stored as Decimal128.
type ProductStore struct {
	collection *mongo.Collection
}

type productDoc struct {
	ID                 string                          `bson:"_id"`
	Name               string                          `bson:"name"`
	Description        string                          `bson:"description,omitempty"`
	Image              string                          `bson:"image,omitempty"`
	Price              primitive.Decimal128            `bson:"price"`
	SizePrices         map[string]primitive.Decimal128 `bson:"size_prices,omitempty"`
	SizeOriginalPrices map[string]primitive.Decimal128 `bson:"size_original_prices,omitempty"`
	InStock            bool                            `bson:"in_stock"`
	Sizes              []string                        `bson:"sizes,omitempty"`
	CreatedAt          time.Time                       `bson:"created_at"`
	UpdatedAt          time.Time                       `bson:"updated_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

func toDecimal128Map(m map[string]decimal.Decimal) (map[string]primitive.Decimal128, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]primitive.Decimal128, len(m))
	for k, v := range m {
		d, err := toDecimal128(v)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func fromDecimal128Map(m map[string]primitive.Decimal128) (map[string]decimal.Decimal, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		d, err := fromDecimal128(v)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

func newProductDoc(p models.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, fmt.Errorf("failed to encode price: %w", err)
	}
	sizePrices, err := toDecimal128Map(p.SizePrices)
	if err != nil {
		return productDoc{}, fmt.Errorf("failed to encode size prices: %w", err)
	}
	originals, err := toDecimal128Map(p.SizeOriginalPrices)
	if err != nil {
		return productDoc{}, fmt.Errorf("failed to encode original prices: %w", err)
	}
	return productDoc{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Image:              p.Image,
		Price:              price,
		SizePrices:         sizePrices,
		SizeOriginalPrices: originals,
		InStock:            p.InStock,
		Sizes:              p.Sizes,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}, nil
}

func (d productDoc) product() (models.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to decode price of %s: %w", d.ID, err)
	}
	sizePrices, err := fromDecimal128Map(d.SizePrices)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to decode size prices of %s: %w", d.ID, err)
	}
	originals, err := fromDecimal128Map(d.SizeOriginalPrices)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to decode original prices of %s: %w", d.ID, err)
	}
	return models.Product{
		ID:                 d.ID,
		Name:               d.Name,
		Description:        d.Description,
		Image:              d.Image,
		Price:              price,
		SizePrices:         sizePrices,
		SizeOriginalPrices: originals,
		InStock:            d.InStock,
		Sizes:              d.Sizes,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}, nil
}

func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	const op = "products.List"
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("failed to query products: %w", err))
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errs.Persistence(op, fmt.Errorf("failed to decode products: %w", err))
	}

	products := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.product()
		if err != nil {
			return nil, errs.Persistence(op, err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *ProductStore) Get(ctx context.Context, id string) (models.Product, error) {
	const op = "products.Get"
	var doc productDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Product{}, errs.NotFoundf(op, "product %s not found", id)
		}
		return models.Product{}, errs.Persistence(op, fmt.Errorf("failed to load product: %w", err))
	}
	p, err := doc.product()
	if err != nil {
		return models.Product{}, errs.Persistence(op, err)
	}
	return p, nil
}

func (s *ProductStore) Create(ctx context.Context, p models.Product) error {
	const op = "products.Create"
	doc, err := newProductDoc(p)
	if err != nil {
		return errs.Validation(op, "price", err)
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.Conflict(op, fmt.Errorf("product %s already exists: %w", p.ID, errs.ErrDuplicate))
		}
		return errs.Persistence(op, fmt.Errorf("failed to insert product: %w", err))
	}
	return nil
}

func (s *ProductStore) Update(ctx context.Context, p models.Product) error {
	const op = "products.Update"
	doc, err := newProductDoc(p)
	if err != nil {
		return errs.Validation(op, "price", err)
	}
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc)
	if err != nil {
		return errs.Persistence(op, fmt.Errorf("failed to update product: %w", err))
	}
	if res.MatchedCount == 0 {
		return errs.NotFoundf(op, "product %s not found", p.ID)
	}
	return nil
}
