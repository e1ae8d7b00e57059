package dedup

import (
	"context"
	"sync"
	"time"
)

// Index registers fingerprints and reports repeats. The persistence
// boundary is an explicit policy of the chosen implementation: Memory
// lives for one run, SQLite survives across runs.
type Index interface {
	// CheckAndRegister reports whether the fingerprint (or its content
	// hash alone) was already registered. The first registration stores
	// the source file name and timestamp; later registrations never
	// overwrite it.
	CheckAndRegister(ctx context.Context, fp Fingerprint, sourceFile string) (bool, error)

	// Remove deletes a registration. Callers roll back a fresh
	// registration when archival fails after it, so a later retry of the
	// same file is not reported as a duplicate.
	Remove(ctx context.Context, fp Fingerprint) error

	// Close releases any resources held by the index.
	Close() error
}

// Registration records who registered a fingerprint first.
type Registration struct {
	SourceFile   string
	RegisteredAt time.Time
}

// Memory is an in-process index with a one-run lifetime. Safe for
// concurrent use; the check-and-register critical section is a single
// short mutex hold.
type Memory struct {
	mu        sync.Mutex
	byKey     map[string]Registration
	byContent map[string]struct{}
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		byKey:     make(map[string]Registration),
		byContent: make(map[string]struct{}),
	}
}

// CheckAndRegister implements Index.
func (m *Memory) CheckAndRegister(_ context.Context, fp Fingerprint, sourceFile string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fp.Key()
	if _, seen := m.byKey[key]; seen {
		return true, nil
	}
	if _, seen := m.byContent[fp.ContentHash]; seen {
		return true, nil
	}

	m.byKey[key] = Registration{SourceFile: sourceFile, RegisteredAt: time.Now().UTC()}
	m.byContent[fp.ContentHash] = struct{}{}
	return false, nil
}

// Remove implements Index.
func (m *Memory) Remove(_ context.Context, fp Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byKey, fp.Key())
	delete(m.byContent, fp.ContentHash)
	return nil
}

// Close implements Index. A memory index holds no resources.
func (m *Memory) Close() error { return nil }

// Size returns the number of registered fingerprints.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}
