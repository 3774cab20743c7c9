// Package store provides storage backends for the LineBridge message log.
//
// It includes an in-memory store for tests and single-run deployments, plus
// SQLite and PostgreSQL backends for durable transcripts. Session state is
// deliberately not persisted here; only the message log is durable.
package store

import (
	"strings"
	"sync"

	"github.com/chiayulab/linebridge/internal/models"
)

// Store is the message-log interface shared by all backends.
type Store interface {
	// AddMessage appends one message to the log.
	AddMessage(m models.Message) error
	// GetMessages returns the full log in insertion order.
	GetMessages() ([]models.Message, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string (file path for SQLite,
	// postgres:// URL for PostgreSQL).
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// IsPostgresDSN reports whether a DSN selects the PostgreSQL backend.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// InMemoryStore is a simple in-memory message log.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// AddMessage appends one message to the log.
func (s *InMemoryStore) AddMessage(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// GetMessages returns a copy of the log in insertion order.
func (s *InMemoryStore) GetMessages() ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
