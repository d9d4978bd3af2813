// Package engine orchestrates the matching, learning and trial balance cores
// against persistent storage. It loads one user's records, runs the pure
// packages over them and writes the resulting mutations back with
// compare-and-swap on each record's version.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/balance"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/matching"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"golang.org/x/sync/errgroup"
)

// Engine ties storage to the matching, learning and balance packages.
type Engine struct {
	storage service.Storage
	matcher *matching.Matcher
	learner *pattern.Learner
	cfg     Config
}

// Config holds configuration options for the engine.
type Config struct {
	Matching    matching.Config
	Learning    pattern.Config
	Balance     balance.Config
	BatchSize   int // Mutations committed per database transaction in bulk runs
	Parallelism int // Users processed at once by RunForUsers
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Matching:    matching.DefaultConfig(),
		Learning:    pattern.DefaultConfig(),
		Balance:     balance.DefaultConfig(),
		BatchSize:   100,
		Parallelism: 4,
	}
}

// Validate checks every nested policy.
func (c Config) Validate() error {
	if err := c.Matching.Validate(); err != nil {
		return err
	}
	if err := c.Learning.Validate(); err != nil {
		return err
	}
	if err := c.Balance.Validate(); err != nil {
		return err
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1", common.ErrInvalidConfig)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1", common.ErrInvalidConfig)
	}
	return nil
}

// ProgressFunc is told how many of total mutations have been committed.
type ProgressFunc func(done, total int)

// New creates an engine with the default configuration.
func New(storage service.Storage) *Engine {
	eng, _ := NewWithConfig(storage, DefaultConfig())
	return eng
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(storage service.Storage, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		storage: storage,
		matcher: matching.New(cfg.Matching),
		learner: pattern.NewLearner(cfg.Learning),
		cfg:     cfg,
	}, nil
}

// WithClock replaces the time source of the matcher and learner.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.matcher.WithClock(now)
	e.learner.WithClock(now)
	return e
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RunForUsers calls fn for each user with at most Parallelism calls in
// flight. With no users given it runs for every user that has transactions.
// The first failure cancels the remaining work.
func (e *Engine) RunForUsers(ctx context.Context, users []string, fn func(ctx context.Context, userID string) error) error {
	if len(users) == 0 {
		all, err := e.storage.GetUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		users = all
	}

	slog.Info("Running per-user job", "users", len(users), "parallelism", e.cfg.Parallelism)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			if err := fn(gctx, userID); err != nil {
				return fmt.Errorf("user %s: %w", userID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
