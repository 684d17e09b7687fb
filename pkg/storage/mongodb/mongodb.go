package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const integrationAuthsCollection = "integrationauths"

// Store implements domain.IntegrationAuthStore using MongoDB
type Store struct {
	database *mongo.Database
}

type Opts struct {
	URI      string
	Database string
}

// Connect dials MongoDB and returns a store bound to the configured database
func Connect(ctx context.Context, opts Opts) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return New(ctx, client.Database(opts.Database)), client, nil
}

func New(ctx context.Context, database *mongo.Database) *Store {
	store := &Store{
		database: database,
	}
	store.ensureIndexes(ctx)
	return store
}

func (s *Store) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "workspace", Value: 1},
				{Key: "integration", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "accessExpiresAt", Value: 1},
			},
		},
	}

	_, err := s.collection().Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create indexes for integrationauths")
	}
}

func (s *Store) collection() *mongo.Collection {
	return s.database.Collection(integrationAuthsCollection)
}

func (s *Store) CreateIntegrationAuth(ctx context.Context, auth domain.IntegrationAuth) (domain.IntegrationAuth, error) {
	if auth.ID == "" {
		auth.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	auth.CreatedAt = now
	auth.UpdatedAt = now

	if _, err := s.collection().InsertOne(ctx, auth); err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to insert integration auth: %w", err)
	}

	return auth, nil
}

func (s *Store) GetIntegrationAuth(ctx context.Context, id string) (domain.IntegrationAuth, error) {
	var auth domain.IntegrationAuth

	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&auth)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.IntegrationAuth{}, domain.ErrIntegrationAuthNotFound
	}
	if err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to get integration auth: %w", err)
	}

	return auth, nil
}

func (s *Store) UpdateAccess(ctx context.Context, p domain.UpdateAccessParams) error {
	set := bson.M{
		"access":    p.Access,
		"updatedAt": time.Now().UTC(),
	}

	if p.AccessID != nil {
		set["accessId"] = *p.AccessID
	}

	update := bson.M{"$set": set}
	if p.AccessExpiresAt != nil {
		set["accessExpiresAt"] = *p.AccessExpiresAt
	} else {
		update["$unset"] = bson.M{"accessExpiresAt": ""}
	}

	return s.updateOne(ctx, p.IntegrationAuthID, update)
}

func (s *Store) UpdateRefresh(ctx context.Context, p domain.UpdateRefreshParams) error {
	update := bson.M{
		"$set": bson.M{
			"refresh":   p.Refresh,
			"updatedAt": time.Now().UTC(),
		},
	}

	return s.updateOne(ctx, p.IntegrationAuthID, update)
}

func (s *Store) updateOne(ctx context.Context, id string, update bson.M) error {
	result, err := s.collection().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update integration auth: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrIntegrationAuthNotFound
	}

	return nil
}

func (s *Store) ListExpiringIntegrationAuths(ctx context.Context, before time.Time) ([]domain.IntegrationAuth, error) {
	filter := bson.M{
		"accessExpiresAt":    bson.M{"$lt": before},
		"refresh.ciphertext": bson.M{"$nin": bson.A{nil, ""}},
	}

	opts := options.Find().SetSort(bson.D{{Key: "accessExpiresAt", Value: 1}})

	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring integration auths: %w", err)
	}
	defer cursor.Close(ctx)

	var auths []domain.IntegrationAuth
	if err := cursor.All(ctx, &auths); err != nil {
		return nil, fmt.Errorf("failed to decode integration auths: %w", err)
	}

	return auths, nil
}
