package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9/exp"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// brokenBackend simulates an unreachable networked cache
type brokenBackend struct {
	mu      sync.Mutex
	pingErr error
	calls   int
}

func (b *brokenBackend) Type() string { return providers.BackendNetworked }

func (b *brokenBackend) fail() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return errConnRefused
}

func (b *brokenBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, b.fail()
}

func (b *brokenBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.fail()
}

func (b *brokenBackend) Delete(ctx context.Context, keys ...string) error { return b.fail() }

func (b *brokenBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	return nil, b.fail()
}

func (b *brokenBackend) IncrCounter(ctx context.Context, key, field string, delta int64, ttl time.Duration) error {
	return b.fail()
}

func (b *brokenBackend) Ping(ctx context.Context) error { return b.pingErr }

func (b *brokenBackend) Diagnostics(ctx context.Context) (map[string]interface{}, error) {
	return nil, b.fail()
}

func (b *brokenBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// MockContentRepository returns fixed invalid ID sets per kind
type MockContentRepository struct {
	mu      sync.RWMutex
	invalid map[entities.EntityType][]string
	errs    map[entities.EntityType]error
	calls   int
}

func NewMockContentRepository() *MockContentRepository {
	return &MockContentRepository{
		invalid: make(map[entities.EntityType][]string),
		errs:    make(map[entities.EntityType]error),
	}
}

func (m *MockContentRepository) SetInvalid(kind entities.EntityType, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid[kind] = ids
}

func (m *MockContentRepository) SetError(kind entities.EntityType, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind] = err
}

func (m *MockContentRepository) ListInvalidIDs(ctx context.Context, kind entities.EntityType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.errs[kind]; err != nil {
		return nil, err
	}
	return m.invalid[kind], nil
}

type searchCall struct {
	kind      entities.EntityType
	condition exp.Expression
	order     []exp.OrderedExpression
	limit     int
	offset    int
}

// MockContentSearchRepository serves fixed records and records every call
type MockContentSearchRepository struct {
	mu         sync.RWMutex
	records    map[entities.EntityType][]*entities.ContentRecord
	categories map[entities.EntityType][]string
	calls      []searchCall
	catCalls   int
	err        error
}

func NewMockContentSearchRepository() *MockContentSearchRepository {
	return &MockContentSearchRepository{
		records:    make(map[entities.EntityType][]*entities.ContentRecord),
		categories: make(map[entities.EntityType][]string),
	}
}

func (m *MockContentSearchRepository) Add(records ...*entities.ContentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.Kind] = append(m.records[r.Kind], r)
	}
}

func (m *MockContentSearchRepository) Search(ctx context.Context, kind entities.EntityType, condition exp.Expression, order []exp.OrderedExpression, limit, offset int) ([]*entities.ContentRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, searchCall{kind: kind, condition: condition, order: order, limit: limit, offset: offset})
	if m.err != nil {
		return nil, 0, m.err
	}

	all := m.records[kind]
	if offset >= len(all) {
		return []*entities.ContentRecord{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MockContentSearchRepository) ListCategories(ctx context.Context, kind entities.EntityType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.categories[kind], nil
}

func (m *MockContentSearchRepository) SearchCalls() []searchCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]searchCall(nil), m.calls...)
}
