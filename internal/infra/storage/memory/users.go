package memory

import (
	"context"
	"errors"
	"sync"

	domainuser "staybook/internal/domain/user"
)

// UserRepository stores users in memory. Not suitable for production.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domainuser.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domainuser.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.byID[id]; ok {
		return cloneUser(user), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	if user, ok := r.byID[id]; ok {
		return cloneUser(user), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || user.ID == "" {
		return errors.New("memory: user id required")
	}
	emailKey := domainuser.NormalizeEmail(user.Email)
	if emailKey == "" {
		return errors.New("memory: user email required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byEmail[emailKey]; ok && existingID != user.ID {
		return errors.New("memory: email already registered")
	}
	r.byID[user.ID] = cloneUser(user)
	r.byEmail[emailKey] = user.ID
	return nil
}

func cloneUser(user *domainuser.User) *domainuser.User {
	cp := *user
	cp.Roles = append([]domainuser.Role(nil), user.Roles...)
	return &cp
}
