package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"audit_log", "node_links", "agents", "models", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("loom_test"),
			postgres.WithUsername("loom"),
			postgres.WithPassword("loom"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	// Verify tables were created
	var exists bool

	for _, table := range []string{"models", "agents", "node_links", "audit_log", "schema_migrations"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_SaveAndRetrieveModel(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	model := &models.Model{
		ID:          "intake-pipeline",
		Name:        "Intake Pipeline",
		Description: "Order intake processing",
		Status:      models.ModelStatusDraft,
		Version:     "1.2.0",
		Owner:       "alice",
		Nodes: map[string]*models.Node{
			"input-1": {ID: "input-1", Name: "Orders In", Type: models.NodeTypeBoundaryInput},
			"stage-1": {ID: "stage-1", Name: "Processing", Type: models.NodeTypeStage, Dependencies: []string{"input-1"}},
		},
		ActionNodes: map[string]*models.ActionNode{
			"action-1": {
				ID:        "action-1",
				Name:      "Fetch Orders",
				ParentID:  "stage-1",
				Operation: models.OperationAPICall,
				Config:    map[string]any{"endpoint": "https://api.example.com/orders", "method": "GET"},
			},
		},
		Metadata:    map[string]any{"team": "fulfillment"},
		Permissions: map[string]string{"alice": "owner", "bob": "editor"},
	}

	err := p.ModelRepository().Save(ctx, model)
	require.NoError(t, err)

	fetched, err := p.ModelRepository().GetByID(ctx, "intake-pipeline")
	require.NoError(t, err)
	require.NotNil(t, fetched)

	assert.Equal(t, "Intake Pipeline", fetched.Name)
	assert.Equal(t, models.ModelStatusDraft, fetched.Status)
	assert.Equal(t, "1.2.0", fetched.Version)
	assert.Len(t, fetched.Nodes, 2)
	assert.Len(t, fetched.ActionNodes, 1)
	assert.Equal(t, "owner", fetched.Permissions["alice"])
	assert.Equal(t, "fulfillment", fetched.Metadata["team"])

	action := fetched.ActionNodes["action-1"]
	require.NotNil(t, action)
	assert.Equal(t, models.OperationAPICall, action.Operation)
	assert.Equal(t, "stage-1", action.ParentID)
}
