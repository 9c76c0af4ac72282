package mcp

import (
	"sync"

	"results-agent/src/results"
)

// ResultsStore keeps fetched results so single tests can be inspected
// after fetch_results.
type ResultsStore interface {
	Store(requestID string, r *results.TestResult)
	// Get looks up one test by its slash-separated name.
	Get(requestID, testName string) (results.TestCase, bool)
	GetAll(requestID string) (*results.TestResult, bool)
}

// InMemoryStore is a thread-safe in-memory ResultsStore holding at most
// capacity requests; the oldest is evicted first.
type InMemoryStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	requests map[string]*results.TestResult
}

// DefaultStoreCapacity bounds the results kept by NewInMemoryStore.
const DefaultStoreCapacity = 32

func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity < 1 {
		capacity = DefaultStoreCapacity
	}
	return &InMemoryStore{
		capacity: capacity,
		requests: make(map[string]*results.TestResult),
	}
}

func (s *InMemoryStore) Store(requestID string, r *results.TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[requestID]; !exists {
		s.order = append(s.order, requestID)
	}
	s.requests[requestID] = r

	for len(s.order) > s.capacity {
		delete(s.requests, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *InMemoryStore) Get(requestID, testName string) (results.TestCase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[requestID]
	if !ok {
		return results.TestCase{}, false
	}
	return r.ResultForTest(testName)
}

func (s *InMemoryStore) GetAll(requestID string) (*results.TestResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[requestID]
	return r, ok
}
