package credential

import (
	"context"
	"sort"
	"sync"
	"time"

	"consultancy_auth/internal/domain"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for local development and
// tests. It applies the same normalization and hashing as the gorm hooks.
type MemoryRepository struct {
	mu      sync.RWMutex
	cost    int
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

// NewMemoryRepository returns an empty repository hashing at cost
func NewMemoryRepository(cost int) *MemoryRepository {
	return &MemoryRepository{
		cost:    cost,
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
}

// FindByEmail implements Repository
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// FindByID implements Repository
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Create implements Repository
func (r *MemoryRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = domain.NormalizeEmail(user.Email)
	if _, ok := r.byEmail[user.Email]; ok {
		return ErrUserExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleStudent
	}
	hash, err := domain.HashPassword(user.Password, r.cost)
	if err != nil {
		return err
	}
	user.Password = hash
	user.CreatedAt = time.Now()
	cp := *user
	r.byEmail[cp.Email] = &cp
	r.byID[cp.ID] = &cp
	return nil
}

// List implements Repository, newest first
func (r *MemoryRepository) List(_ context.Context, offset, limit int) ([]domain.User, int64, error) {
	if offset < 0 {
		return nil, 0, ErrPageOutOfRange
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.User{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// Len reports how many users are stored
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
