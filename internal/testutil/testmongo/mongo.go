// Package testmongo gives each test its own database on a MongoDB container
// shared by the whole test binary.
package testmongo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/chirino/taskmate/internal/config"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	once      sync.Once
	sharedURI string
	startErr  error
)

// URI starts the shared container on first use and returns its connection URI.
// The container is reaped when the test binary exits.
func URI(tb testing.TB) string {
	tb.Helper()
	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		container, err := mongodb.Run(ctx, "mongo:7")
		if err != nil {
			startErr = err
			return
		}
		sharedURI, startErr = container.ConnectionString(ctx)
	})
	if startErr != nil {
		tb.Fatalf("start mongodb container: %v", startErr)
	}
	return sharedURI
}

// Configure points cfg at a fresh database that is dropped when the test ends.
func Configure(tb testing.TB, cfg *config.Config) {
	tb.Helper()
	cfg.DBURL = URI(tb)
	cfg.DBName = "taskmate_" + randomSuffix(tb)
	cfg.DatastoreType = "mongo"

	uri, name := cfg.DBURL, cfg.DBName
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(options.Client().ApplyURI(uri))
		if err != nil {
			tb.Errorf("connect to drop %s: %v", name, err)
			return
		}
		defer client.Disconnect(ctx)
		if err := client.Database(name).Drop(ctx); err != nil {
			tb.Errorf("drop %s: %v", name, err)
		}
	})
}

func randomSuffix(tb testing.TB) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		tb.Fatalf("random database name: %v", err)
	}
	return hex.EncodeToString(b)
}
