// Package storage persists opaque per-user blobs under namespaced keys.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("storage: key not found")

const Prefix = "finwise"

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StateKey addresses the serialized AppState of one user.
func StateKey(email string) string {
	return Prefix + "_appstate_" + NormalizeEmail(email)
}

// UserKey addresses the auth record of one user.
func UserKey(email string) string {
	return Prefix + "_user_" + NormalizeEmail(email)
}

// SeededKey marks that starter data was applied for one user.
func SeededKey(email string) string {
	return Prefix + "_seeded_" + NormalizeEmail(email)
}

type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
