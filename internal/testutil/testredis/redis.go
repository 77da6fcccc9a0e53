// Package testredis hands out isolated Redis databases on a container shared
// by the whole test binary.
package testredis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// databases is the number of logical databases a default redis server exposes.
const databases = 16

var (
	once     sync.Once
	addr     string
	startErr error
	next     atomic.Int32
)

func start() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		startErr = err
		return
	}
	host, err := container.Host(ctx)
	if err != nil {
		startErr = err
		return
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		startErr = err
		return
	}
	addr = fmt.Sprintf("%s:%s", host, port.Port())
}

// StartRedis returns a redis:// URL for a logical database that is flushed
// before and after the test.
func StartRedis(tb testing.TB) string {
	tb.Helper()
	once.Do(start)
	if startErr != nil {
		tb.Fatalf("start redis container: %v", startErr)
	}

	db := int(next.Add(1)-1) % databases
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	flush := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return client.FlushDB(ctx).Err()
	}
	if err := flush(); err != nil {
		tb.Fatalf("flush redis db %d: %v", db, err)
	}
	tb.Cleanup(func() {
		if err := flush(); err != nil {
			tb.Errorf("flush redis db %d: %v", db, err)
		}
		_ = client.Close()
	})
	return fmt.Sprintf("redis://%s/%d", addr, db)
}
