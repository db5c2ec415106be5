package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/layer-3/apiclient/core"
	"golang.org/x/crypto/bcrypt"
)

// Users is the sandbox user directory. Passwords are kept as bcrypt hashes.
type Users struct {
	mu     sync.RWMutex
	hashes map[string][]byte
}

func NewUsers() *Users {
	return &Users{hashes: make(map[string][]byte)}
}

// Add registers username, replacing any previous password
func (u *Users) Add(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.hashes[username] = hash
	return nil
}

// Authenticate returns core.ErrInvalidLogin for unknown users and wrong passwords alike
func (u *Users) Authenticate(_ context.Context, username, password string) error {
	u.mu.RLock()
	hash, ok := u.hashes[username]
	u.mu.RUnlock()

	if !ok {
		return core.ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return core.ErrInvalidLogin
	}
	return nil
}
