package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// UserStore keeps one profile document per user with the address book
// embedded.
type UserStore struct {
	collection *mongo.Collection
}

func (s *UserStore) Load(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.UserProfile{UserID: userID}, nil
		}
		return models.UserProfile{}, errs.Persistence("users.Load", fmt.Errorf("failed to load profile: %w", err))
	}
	return profile, nil
}

// Append pushes the address and moves the last-used pointer in one update.
func (s *UserStore) Append(ctx context.Context, userID string, addr models.Address) error {
	update := bson.M{
		"$push": bson.M{"addresses": addr},
		"$set":  bson.M{"last_used_address_id": addr.ID},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return errs.Persistence("users.Append", fmt.Errorf("failed to save address: %w", err))
	}
	return nil
}
