//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer is a throwaway database reached through the pgx stdlib
// driver.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts postgres:16-alpine with a "wordhub" database.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("wordhub"),
		tcpostgres.WithUsername("wordhub"),
		tcpostgres.WithPassword("wordhub"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		fail(t, nil, "start postgres container", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail(t, container, "postgres connection string", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fail(t, container, "open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		fail(t, container, "ping postgres", err, db.Close)
	}

	terminateOnCleanup(t, container, db.Close)
	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}
