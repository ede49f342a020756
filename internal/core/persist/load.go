package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// Source は起動時のスナップショットの取得元です。
type Source int

const (
	SourceDefaults Source = iota
	SourceRemote
	SourceCache
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceCache:
		return "cache"
	default:
		return "defaults"
	}
}

// LoadResult は Load の結果です。
type LoadResult struct {
	Snapshot *roster.Snapshot
	Source   Source
	Report   Report
}

// Loader は起動時のスナップショットを remote, cache, 初期値の順に解決します。
// Remote と Cache はどちらも nil を許容します。
type Loader struct {
	Key    string
	Remote DocumentStore
	Cache  DocumentStore
	Logger *slog.Logger
}

// Load はスナップショットを読み込みます。どの保存先からも読めない場合は初期値を返すため失敗しません。
func (l Loader) Load(ctx context.Context) LoadResult {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	candidates := []struct {
		source Source
		store  DocumentStore
	}{
		{source: SourceRemote, store: l.Remote},
		{source: SourceCache, store: l.Cache},
	}
	for _, c := range candidates {
		if c.store == nil {
			continue
		}
		snap, report, err := l.fetch(ctx, c.store)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrDocumentNotFound) {
				level = slog.LevelInfo
			}
			logger.Log(ctx, level, "snapshot load failed", "source", c.source.String(), "key", l.Key, "err", err)
			continue
		}
		if report.Total() > 0 {
			logger.Warn("snapshot normalized on load",
				"source", c.source.String(),
				"duplicate_absences", report.DuplicateAbsences,
				"status_filled", report.StatusFilled,
				"status_cleared", report.StatusCleared,
				"roster_entries", report.RosterEntries,
			)
		}
		logger.Info("snapshot loaded", "source", c.source.String(), "key", l.Key,
			"workers", len(snap.Workers), "sites", len(snap.Sites))
		return LoadResult{Snapshot: snap, Source: c.source, Report: report}
	}

	logger.Info("snapshot loaded", "source", SourceDefaults.String(), "key", l.Key)
	return LoadResult{Snapshot: Defaults(), Source: SourceDefaults}
}

func (l Loader) fetch(ctx context.Context, store DocumentStore) (*roster.Snapshot, Report, error) {
	doc, err := store.Fetch(ctx, l.Key)
	if err != nil {
		return nil, Report{}, err
	}
	snap, report, err := Normalize(doc)
	if err != nil {
		return nil, Report{}, err
	}
	if err := roster.Validate(snap); err != nil {
		return nil, Report{}, fmt.Errorf("persist: validate snapshot: %w", err)
	}
	return snap, report, nil
}
