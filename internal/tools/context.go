package tools

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

type ctxKey int

const sourceTrackerKey ctxKey = iota

// SourceTracker assigns dense 1-based citation indices across one
// response. Repeated URLs keep their first index.
type SourceTracker struct {
	mu      sync.Mutex
	sources []protocol.Source
	byURL   map[string]int
}

func NewSourceTracker() *SourceTracker {
	return &SourceTracker{byURL: make(map[string]int)}
}

// Add registers a source and returns its index.
func (t *SourceTracker) Add(src protocol.Source) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.byURL[src.URL]; ok {
		return idx
	}
	src.Idx = len(t.sources) + 1
	t.sources = append(t.sources, src)
	t.byURL[src.URL] = src.Idx
	return src.Idx
}

// List returns the sources collected so far, in index order.
func (t *SourceTracker) List() []protocol.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.Source, len(t.sources))
	copy(out, t.sources)
	return out
}

// WithSourceTracker attaches a per-turn tracker to the context.
func WithSourceTracker(ctx context.Context, t *SourceTracker) context.Context {
	return context.WithValue(ctx, sourceTrackerKey, t)
}

// SourceTrackerFromCtx returns the turn's tracker, or nil.
func SourceTrackerFromCtx(ctx context.Context) *SourceTracker {
	t, _ := ctx.Value(sourceTrackerKey).(*SourceTracker)
	return t
}
