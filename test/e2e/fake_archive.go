package e2e

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
)

// fakeArchive is an in-memory Archive (pkg/archive.Archive) for e2e tests —
// scenario files are seeded directly into it instead of uploaded to a real
// S3 bucket.
type fakeArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string][]byte)}
}

func (a *fakeArchive) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	body, ok := a.objects[key]
	if !ok {
		return nil, archive.ErrNotFound
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

func (a *fakeArchive) Put(_ context.Context, key string, body []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	a.objects[key] = cp
	return nil
}
