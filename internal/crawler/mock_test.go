package crawler

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"ppbooks/noveltybot/helpers"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// mockFetcher serves canned pages keyed by URL
type mockFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	called []string
}

var _ helpers.PageFetcher = (*mockFetcher)(nil)

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (io.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = append(m.called, url)
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	return strings.NewReader(m.pages[url]), nil
}

func (m *mockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.called)
}
