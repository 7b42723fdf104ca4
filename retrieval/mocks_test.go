package retrieval

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// mockVectorStore records calls and returns configured responses.
// Search may run concurrently, so call recording is locked.
type mockVectorStore struct {
	mu    sync.Mutex
	calls []string

	search func(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)
	embed  func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockVectorStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockVectorStore) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}

	return n
}

func (m *mockVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	m.record("Search:" + collection)
	return m.search(ctx, collection, vector, limit)
}

func (m *mockVectorStore) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.record("Embed")
	return m.embed(ctx, texts)
}

// mockReranker records calls and returns configured responses.
type mockReranker struct {
	calls int

	score func(ctx context.Context, query string, texts []string) ([]float64, error)
}

func (m *mockReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	m.calls++
	return m.score(ctx, query, texts)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}
