// Package persist хранит снимки кэша запросов между запусками.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/query"
)

// FilePersister пишет снимок в JSON-файл.
type FilePersister struct {
	path   string
	logger *zap.Logger
}

func NewFilePersister(path string, logger *zap.Logger) *FilePersister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilePersister{path: path, logger: logger}
}

func (p *FilePersister) Persist(ctx context.Context, state query.DehydratedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Пишем во временный файл, чтобы не оставить обрезанный снимок.
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	p.logger.Debug("Snapshot written", zap.String("path", p.path), zap.Int("queries", len(state.Queries)))
	return nil
}

// Restore returns an empty state when the file does not exist yet.
func (p *FilePersister) Restore(ctx context.Context) (query.DehydratedState, error) {
	if err := ctx.Err(); err != nil {
		return query.DehydratedState{}, err
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return query.DehydratedState{}, nil
		}
		return query.DehydratedState{}, fmt.Errorf("read snapshot: %w", err)
	}

	var state query.DehydratedState
	if err := json.Unmarshal(raw, &state); err != nil {
		// Битый файл не должен ломать запуск.
		p.logger.Warn("Discarding unreadable snapshot", zap.String("path", p.path), zap.Error(err))
		return query.DehydratedState{}, nil
	}
	return state, nil
}
