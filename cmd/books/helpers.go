package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/spf13/viper"
)

// retryOptions are used for single-record mutations that may race another
// writer. Each attempt re-reads the records it touches.
var retryOptions = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
	Multiplier:   2,
}

// loadConfig decodes the global viper state.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// session is what most commands need: storage, an engine over it and the
// user the command acts for.
type session struct {
	store  *storage.SQLiteStorage
	engine *engine.Engine
	cfg    *config.Config
	userID string
}

func (s *session) Close() error {
	return s.store.Close()
}

// openSession loads config, opens storage and builds the engine.
// The caller must Close the session.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	userID := strings.TrimSpace(cfg.User.ID)
	if userID == "" {
		return nil, common.NewUserError("no user selected; pass --user or set user.id in config", common.ErrMissingConfig)
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eng, err := engine.NewWithConfig(store, engineCfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &session{store: store, engine: eng, cfg: cfg, userID: userID}, nil
}

// resolveCategory finds a category by name first and then by id.
func (s *session) resolveCategory(ctx context.Context, ref string) (*model.Category, error) {
	cat, err := s.store.GetCategoryByName(ctx, s.userID, ref)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	cat, err = s.store.GetCategory(ctx, s.userID, ref)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(fmt.Sprintf("no category named %q; see 'books categories list'", ref), err)
	}
	return cat, err
}

// categoryIndex maps category ids to categories for rendering.
func (s *session) categoryIndex(ctx context.Context) (map[string]model.Category, error) {
	categories, err := s.store.GetCategories(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	index := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		index[c.ID] = c
	}
	return index, nil
}

// parseRef reads a transaction argument written as id or id@version. A bare
// id has version zero: the command has not observed the record yet.
func parseRef(arg string) (model.TransactionRef, error) {
	id, version, pinned := strings.Cut(strings.TrimSpace(arg), "@")
	if id == "" {
		return model.TransactionRef{}, common.NewUserError(
			fmt.Sprintf("transaction %q needs an id", arg),
			fmt.Errorf("%w: empty transaction id", common.ErrValidation))
	}
	if !pinned {
		return model.TransactionRef{ID: id}, nil
	}
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil || v < 1 {
		return model.TransactionRef{}, common.NewUserError(
			fmt.Sprintf("transaction %q: version must be a positive number", arg),
			fmt.Errorf("%w: bad version %q", common.ErrValidation, version))
	}
	return model.TransactionRef{ID: id, Version: v}, nil
}

// mutate runs fn against refs. Refs given with a version are used as they
// are and tried once, so a record that moved on reports stale state. Bare
// refs are read fresh on every attempt and the call is retried if another
// writer gets there first.
func (s *session) mutate(ctx context.Context, op string, refs []model.TransactionRef, fn func([]model.TransactionRef) error) error {
	pinned := true
	for _, ref := range refs {
		if ref.Version == 0 {
			pinned = false
		}
	}
	if pinned {
		return common.Opaque(fn(refs), op)
	}

	return withRetry(ctx, op, func() error {
		observed := make([]model.TransactionRef, len(refs))
		for i, ref := range refs {
			if ref.Version != 0 {
				observed[i] = ref
				continue
			}
			txn, err := s.store.GetTransactionByID(ctx, s.userID, ref.ID)
			if err != nil {
				return err
			}
			observed[i] = txn.Ref()
		}
		return fn(observed)
	})
}

// withRetry retries op on stale state and hides unexpected failures.
func withRetry(ctx context.Context, op string, fn func() error) error {
	return common.Opaque(common.WithRetry(ctx, fn, retryOptions), op)
}
