// Package testutil starts throwaway PostgreSQL instances for integration
// tests. Tests using it are skipped when no Docker provider is reachable.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BuzzLyutic/tasks-api/internal/repo"
)

// SetupPostgres запускает контейнер PostgreSQL и возвращает строку подключения
func SetupPostgres(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

// SetupTestDB создает тестовую БД со схемой из migrations/
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	connStr, terminate := SetupPostgres(t)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		terminate()
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		terminate()
		t.Fatalf("Failed to ping database: %v", err)
	}
	if err := repo.Migrate(ctx, pool); err != nil {
		pool.Close()
		terminate()
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		terminate()
	}
	return pool, cleanup
}

// TruncateTables очищает все таблицы
func TruncateTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), "TRUNCATE tasks RESTART IDENTITY CASCADE")
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SeedTasks создает тестовые задачи "Task 1".."Task N"
func SeedTasks(t *testing.T, pool *pgxpool.Pool, count int) []int64 {
	t.Helper()
	ctx := context.Background()

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO tasks (title, done)
			VALUES ($1, $2)
			RETURNING id
		`, fmt.Sprintf("Task %d", i+1), i%2 == 0).Scan(&id)
		if err != nil {
			t.Fatalf("Failed to seed task: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}
