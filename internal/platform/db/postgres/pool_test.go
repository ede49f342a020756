package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ogurasousui/site-roster/internal/platform/config"
)

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	dbCfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            15432,
		User:            "user",
		Password:        "pass",
		Name:            "db",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	poolCfg, err := BuildPoolConfig(dbCfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", poolCfg.MaxConns)
	}

	if poolCfg.MinConns != 5 {
		t.Errorf("expected MinConns 5, got %d", poolCfg.MinConns)
	}

	if poolCfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("unexpected MaxConnLifetime: %v", poolCfg.MaxConnLifetime)
	}

	if poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected MaxConnIdleTime: %v", poolCfg.MaxConnIdleTime)
	}

	if poolCfg.ConnConfig.Database != "db" {
		t.Errorf("expected database db, got %s", poolCfg.ConnConfig.Database)
	}

	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != ApplicationName {
		t.Errorf("expected application_name %s, got %q", ApplicationName, got)
	}
}

func TestBuildPoolConfig_Defaults(t *testing.T) {
	t.Parallel()

	poolCfg, err := BuildPoolConfig(config.DatabaseConfig{
		Host:         "localhost",
		Port:         5432,
		User:         "user",
		Password:     "p@ss/word",
		Name:         "db",
		SSLMode:      "disable",
		MaxIdleConns: 10,
	})
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 4 {
		t.Errorf("expected default MaxConns 4, got %d", poolCfg.MaxConns)
	}
	if poolCfg.MinConns != 4 {
		t.Errorf("expected MinConns clamped to 4, got %d", poolCfg.MinConns)
	}
	if poolCfg.ConnConfig.Password != "p@ss/word" {
		t.Errorf("password was not preserved: %q", poolCfg.ConnConfig.Password)
	}
}

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithRetry(t *testing.T) {
	t.Parallel()

	recovering := &flakyPinger{failures: 2}
	if err := pingWithRetry(context.Background(), recovering, 3, time.Millisecond); err != nil {
		t.Fatalf("expected ping to recover, got %v", err)
	}
	if recovering.calls != 3 {
		t.Fatalf("expected 3 pings, got %d", recovering.calls)
	}

	down := &flakyPinger{failures: 10}
	if err := pingWithRetry(context.Background(), down, 3, time.Millisecond); err == nil {
		t.Fatalf("expected error when database stays down")
	}
	if down.calls != 3 {
		t.Fatalf("expected 3 pings, got %d", down.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pingWithRetry(ctx, &flakyPinger{failures: 10}, 3, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
