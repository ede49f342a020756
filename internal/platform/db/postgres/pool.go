package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ogurasousui/site-roster/internal/platform/config"
)

// ApplicationName は pg_stat_activity に表示される接続名です。
const ApplicationName = "site-roster"

const (
	pingAttempts   = 3
	pingBackoff    = 200 * time.Millisecond
	healthInterval = 30 * time.Second
)

// BuildPoolConfig は database 設定から pgxpool.Config を構築します。
func BuildPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	// 文書ストアは同時に数本しか使わない
	poolCfg.MaxConns = 4
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = min(int32(cfg.MaxIdleConns), poolCfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	poolCfg.HealthCheckPeriod = healthInterval
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	return poolCfg, nil
}

// NewPool は pgxpool.Pool を生成し疎通確認を行います。疎通確認は間隔を広げながら数回まで試みます。
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool, pingAttempts, pingBackoff); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, p pinger, attempts int, backoff time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Ping(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(backoff << i):
		}
	}
	return fmt.Errorf("postgres: ping after %d attempts: %w", attempts, err)
}
