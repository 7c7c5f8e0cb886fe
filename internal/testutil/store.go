package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/possync/internal/ops"
)

// ErrInjected is the default error returned by a FaultyStore.
var ErrInjected = errors.New("injected store failure")

// LogStore mirrors engine.LogStore.
type LogStore interface {
	Put(ctx context.Context, op ops.Operation) error
	GetAll(ctx context.Context) ([]ops.Operation, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// FaultyStore wraps a LogStore and fails selected calls on demand.
type FaultyStore struct {
	LogStore

	mu         sync.Mutex
	failPut    int
	failDelete int
	failGetAll int
	err        error
	puts       int
	deletes    int
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner LogStore) *FaultyStore {
	return &FaultyStore{LogStore: inner, err: ErrInjected}
}

// FailPuts makes the next n Put calls fail.
func (s *FaultyStore) FailPuts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = n
}

// FailDeletes makes the next n Delete calls fail.
func (s *FaultyStore) FailDeletes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = n
}

// FailGetAll makes the next n GetAll calls fail.
func (s *FaultyStore) FailGetAll(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGetAll = n
}

// Puts returns the number of successful Put calls.
func (s *FaultyStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Deletes returns the number of successful Delete calls.
func (s *FaultyStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *FaultyStore) Put(ctx context.Context, op ops.Operation) error {
	s.mu.Lock()
	if s.failPut > 0 {
		s.failPut--
		s.mu.Unlock()
		return s.err
	}
	s.puts++
	s.mu.Unlock()
	return s.LogStore.Put(ctx, op)
}

func (s *FaultyStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.failDelete > 0 {
		s.failDelete--
		s.mu.Unlock()
		return s.err
	}
	s.deletes++
	s.mu.Unlock()
	return s.LogStore.Delete(ctx, id)
}

func (s *FaultyStore) GetAll(ctx context.Context) ([]ops.Operation, error) {
	s.mu.Lock()
	if s.failGetAll > 0 {
		s.failGetAll--
		s.mu.Unlock()
		return nil, s.err
	}
	s.mu.Unlock()
	return s.LogStore.GetAll(ctx)
}
