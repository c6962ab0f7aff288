package index

import (
	"sync"

	"github.com/SmooAI/logdex/internal/catalog"
)

// catalogHandle is the one piece of state shared between the build machinery
// and consumers: the currently published catalog. Swapping is wholesale, so
// a reader observes either the old or the new catalog in full, never a mix.
type catalogHandle struct {
	mu      sync.RWMutex
	current *catalog.Catalog
}

// Load returns the current catalog, or nil when nothing has published yet.
func (h *catalogHandle) Load() *catalog.Catalog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Swap replaces the current catalog and returns the previous one so the
// caller can dispose of its store.
func (h *catalogHandle) Swap(next *catalog.Catalog) *catalog.Catalog {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}
