package pattern

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

var _ Store = (*MemoryStore)(nil)

type patternKey struct {
	patternType model.PatternType
	value       string
}

type userPatterns struct {
	patterns   map[patternKey]model.LearningPattern
	categories map[string]model.Category
}

// MemoryStore is an in-process Store keyed by user.
type MemoryStore struct {
	users map[string]*userPatterns
	mu    sync.RWMutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*userPatterns)}
}

// AddCategory registers a category for its owner.
func (s *MemoryStore) AddCategory(category model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user(category.UserID).categories[category.ID] = category
}

// ListPatterns implements Store.
func (s *MemoryStore) ListPatterns(ctx context.Context, userID string, patternType model.PatternType) ([]model.LearningPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []model.LearningPattern{}, nil
	}
	out := make([]model.LearningPattern, 0, len(u.patterns))
	for key, p := range u.patterns {
		if patternType == "" || key.patternType == patternType {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// FindPattern implements Store.
func (s *MemoryStore) FindPattern(ctx context.Context, userID string, patternType model.PatternType, value string) (*model.LearningPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		if p, ok := u.patterns[patternKey{patternType: patternType, value: value}]; ok {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s pattern %q", common.ErrNotFound, patternType, value)
}

// SavePattern implements Store.
func (s *MemoryStore) SavePattern(ctx context.Context, p *model.LearningPattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePattern(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(p.UserID)
	key := patternKey{patternType: p.Type, value: p.Value}
	if existing, ok := u.patterns[key]; ok && existing.ID != "" {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	u.patterns[key] = *p
	return nil
}

// GetCategory implements Store.
func (s *MemoryStore) GetCategory(ctx context.Context, userID, categoryID string) (*model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		if c, ok := u.categories[categoryID]; ok {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: category %s", common.ErrNotFound, categoryID)
}

// user returns the user's bucket, creating it. Callers hold the write lock.
func (s *MemoryStore) user(userID string) *userPatterns {
	u, ok := s.users[userID]
	if !ok {
		u = &userPatterns{
			patterns:   make(map[patternKey]model.LearningPattern),
			categories: make(map[string]model.Category),
		}
		s.users[userID] = u
	}
	return u
}
