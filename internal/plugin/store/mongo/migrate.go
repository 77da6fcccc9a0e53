package mongo

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(databaseName(cfg))

	// Create collections with indexes
	collections := map[string][]mongo.IndexModel{
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_email"),
			},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		"tasks": {
			{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "isDeleted", Value: 1}}},
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "isDeleted", Value: 1}}},
			{Keys: bson.D{{Key: "dueDate", Value: 1}}},
			{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "deletedAt", Value: 1}}},
		},
		"notifications": {
			{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "createdBy", Value: 1}, {Key: "type", Value: 1}}},
		},
		"inbox": {
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "isRead", Value: 1}}},
		},
		"group_chats": nil,
		"chatbots": {
			{
				Keys:    bson.D{{Key: "user", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_chat_name_per_user"),
			},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "lastActive", Value: -1}}},
		},
	}

	for name, indexes := range collections {
		// Ensure collection exists
		db.CreateCollection(ctx, name)
		if len(indexes) > 0 {
			if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
			}
		}
	}

	log.Info("MongoDB schema migration complete")
	return nil
}
