package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/config"
	registrycache "github.com/chirino/taskmate/internal/registry/cache"
	registrymigrate "github.com/chirino/taskmate/internal/registry/migrate"
	registrystore "github.com/chirino/taskmate/internal/registry/store"
	"github.com/chirino/taskmate/internal/security"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.TaskStore, error) {
			cfg := config.FromContext(ctx)
			client, err := Connect(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return &MongoStore{
				client:    client,
				db:        client.Database(databaseName(cfg)),
				userCache: registrycache.UserCacheFromContext(ctx),
				cacheTTL:  cfg.CacheTTL,
			}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
}

// Connect opens and pings a client using the configured URL and pool sizes.
func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.DBURL)
	if cfg.DBMaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
	}
	if cfg.DBMaxIdleConns > 0 {
		opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func databaseName(cfg *config.Config) string {
	if cfg != nil && strings.TrimSpace(cfg.DBName) != "" {
		return cfg.DBName
	}
	return "taskmate"
}

// MongoStore implements TaskStore using MongoDB.
type MongoStore struct {
	client    *mongo.Client
	db        *mongo.Database
	userCache registrycache.UserCache
	cacheTTL  time.Duration
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

// Database exposes the underlying database for plugins sharing the connection.
func (s *MongoStore) Database() *mongo.Database { return s.db }

// Ping reports whether the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// --- Collection accessors ---

func (s *MongoStore) users() *mongo.Collection         { return s.db.Collection("users") }
func (s *MongoStore) tasks() *mongo.Collection         { return s.db.Collection("tasks") }
func (s *MongoStore) notifications() *mongo.Collection { return s.db.Collection("notifications") }
func (s *MongoStore) inbox() *mongo.Collection         { return s.db.Collection("inbox") }
func (s *MongoStore) groupChats() *mongo.Collection    { return s.db.Collection("group_chats") }
func (s *MongoStore) chatbots() *mongo.Collection      { return s.db.Collection("chatbots") }

// --- ID helpers ---

func parseID(resource, id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, &registrystore.ValidationError{Field: "id", Message: fmt.Sprintf("invalid %s id %q", resource, id)}
	}
	return oid, nil
}

func parseIDs(resource string, ids []string) ([]bson.ObjectID, error) {
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := parseID(resource, id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func hexIDs(ids []bson.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// --- Notification fan-out ---

// insertNotifications writes one notification per recipient. Failures are
// logged and returned; there is no retry.
func (s *MongoStore) insertNotifications(ctx context.Context, docs []notificationDoc) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i := range docs {
		batch[i] = docs[i]
	}
	if _, err := s.notifications().InsertMany(ctx, batch); err != nil {
		log.Error("Failed to insert notifications", "count", len(docs), "type", docs[0].Type, "err", err)
		return fmt.Errorf("failed to insert notifications: %w", err)
	}
	security.CountNotifications(docs[0].Type, len(docs))
	return nil
}

var _ registrystore.TaskStore = (*MongoStore)(nil)
