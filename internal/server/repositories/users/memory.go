package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophreview/internal/common"
	"github.com/dmitrijs2005/gophreview/internal/server/models"
)

// MemoryRepository keeps accounts in process memory. Uniqueness is checked
// and the record inserted under one lock, so concurrent sign-ups cannot both
// win. Intended for development and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byEmail    map[string]string
	byUsername map[string]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byEmail, email)
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byUsername, username)
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) lookup(index map[string]string, key string) (*models.User, error) {
	id, ok := index[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return common.ErrDuplicateEmail
	}
	if _, ok := r.byUsername[user.UserName]; ok {
		return common.ErrDuplicateUsername
	}
	if _, ok := r.byID[user.ID]; ok {
		return fmt.Errorf("user id %s already taken", user.ID)
	}

	user.CreatedAt = r.now().UTC()
	stored := clone(user)
	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	r.byUsername[stored.UserName] = stored.ID
	return nil
}

// Len reports the number of stored accounts.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func clone(u *models.User) *models.User {
	c := *u
	c.Salt = append([]byte(nil), u.Salt...)
	return &c
}
