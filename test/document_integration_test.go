//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	repo "github.com/ogurasousui/site-roster/internal/adapters/repository/postgres"
	"github.com/ogurasousui/site-roster/internal/core/persist"
	"github.com/ogurasousui/site-roster/internal/core/roster"
	"github.com/ogurasousui/site-roster/internal/platform/config"
	pg "github.com/ogurasousui/site-roster/internal/platform/db/postgres"
)

const migrationsDir = "../assets/migrations"

func TestDocumentSyncIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if err := resetMigrations(cfg.Database.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	documents := repo.NewDocumentRepository(pool, pg.NewTransactionManager(pool), 3)

	loaded := persist.Loader{Key: "integration", Remote: documents}.Load(ctx)
	if loaded.Source != persist.SourceDefaults {
		t.Fatalf("expected defaults on an empty table, got %s", loaded.Source)
	}

	snap := loaded.Snapshot
	snap.Workers = append(snap.Workers, &roster.Worker{ID: "w1", Code: 1, Name: "Integration", Availability: roster.AvailabilityWaiting, Status: roster.WorkerStatusActive})
	snap.Sites = append(snap.Sites, &roster.Site{ID: "s1", Name: "Site", Status: roster.SiteStatusActive, AssignedWorkerIDs: []string{}})

	coordinator := persist.NewCoordinator(persist.CoordinatorConfig{
		Key:      "integration",
		Debounce: 20 * time.Millisecond,
		Targets:  []persist.Target{{Name: "postgres", Store: documents}},
	})
	svc := roster.NewService(roster.NewStore(snap, coordinator), nil, nil)
	admin, err := svc.ResolveActor(ctx, "admin")
	if err != nil {
		t.Fatalf("ResolveActor error: %v", err)
	}

	if err := svc.Assign(ctx, admin, roster.AssignInput{WorkerID: "w1", TargetSiteID: "s1"}); err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := coordinator.Close(closeCtx); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reloaded := persist.Loader{Key: "integration", Remote: documents}.Load(ctx)
	if reloaded.Source != persist.SourceRemote {
		t.Fatalf("expected remote source, got %s", reloaded.Source)
	}
	if w := reloaded.Snapshot.Worker("w1"); w == nil || w.AssignedSiteID != "s1" {
		t.Fatalf("assignment not persisted: %+v", w)
	}

	for i := 0; i < 5; i++ {
		if err := documents.Store(ctx, "integration", []byte(`{"workers":[],"sites":[],"users":[],"skills":[]}`)); err != nil {
			t.Fatalf("Store error: %v", err)
		}
	}
	history, err := documents.History(ctx, "integration", 10)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected history pruned to 3 entries, got %d", len(history))
	}

	if _, err := documents.Fetch(ctx, "missing"); !errors.Is(err, persist.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func resetMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../assets/local.yaml"
}
