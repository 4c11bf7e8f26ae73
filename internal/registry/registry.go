// Package registry keeps registered programs in memory for the lifetime of
// the process.
//
// Entries are never updated, evicted or persisted; growth is unbounded.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nereus-labs/nautilus-go/internal/contenthash"
	"github.com/nereus-labs/nautilus-go/internal/domain"
)

// Registry is safe for concurrent use. Lookups share a read lock; a
// registration holds the write lock only for the map insert.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]domain.Program
	now      func() time.Time
}

func New() *Registry {
	return &Registry{
		programs: make(map[string]domain.Program),
		now:      time.Now,
	}
}

// Register stores a program under id, generating a uuid when id is blank.
// The code hash is computed before the lock is taken.
func (r *Registry) Register(id string, lang domain.Language, source string) (domain.Program, error) {
	if !lang.Valid() {
		return domain.Program{}, domain.Errorf(domain.KindInvalidRequest, "unsupported language %q", string(lang))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	program := domain.Program{
		ID:           id,
		Language:     lang,
		Source:       source,
		CodeHash:     contenthash.Text(source),
		RegisteredAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.programs[id]; exists {
		return domain.Program{}, domain.Errorf(domain.KindProgramExists, "program %q is already registered", id)
	}
	r.programs[id] = program
	return program, nil
}

func (r *Registry) Lookup(id string) (domain.Program, error) {
	r.mu.RLock()
	program, ok := r.programs[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok {
		return domain.Program{}, domain.Errorf(domain.KindProgramNotFound, "program %q not found", id)
	}
	return program, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.programs)
}
