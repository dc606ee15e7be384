package objectstore

import (
	"context"
	"io"
	"sync"

	"github.com/rs/xid"

	"github.com/subdivision/pot-server/internal/apperror"
)

// Memory keeps uploads in a map. It backs local development and tests when
// no bucket is configured; signed URLs are fake but stable.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Upload(_ context.Context, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := "pots/" + xid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return key, nil
}

func (m *Memory) SignedURL(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", apperror.NotFound("object", key)
	}
	return "https://storage.invalid/" + key + "?signed=local", nil
}
