package runs

import (
	"sort"
	"time"

	"github.com/google/uuid"
	cache_pkg "github.com/patrickmn/go-cache"

	"github.com/atikulmunna/loupe/internal/model"
)

// Run is a finished analysis kept around for lookup and export.
type Run struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Format   model.LogFormat `json:"format"`
	Finished time.Time       `json:"finished"`
	Summary  model.Summary   `json:"summary"`
}

// Store keeps finished runs in memory and forgets them after a TTL.
// Nothing is written to disk.
type Store struct {
	client *cache_pkg.Cache
}

// New creates a Store whose entries expire after ttl.
func New(ttl time.Duration) *Store {
	return &Store{client: cache_pkg.New(ttl, ttl/2+time.Second)}
}

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.NewString()
}

// Put stores a run under its ID, replacing any previous entry.
func (s *Store) Put(r Run) {
	s.client.Set(r.ID, r, cache_pkg.DefaultExpiration)
}

// Get returns the run with the given ID.
func (s *Store) Get(id string) (Run, bool) {
	v, ok := s.client.Get(id)
	if !ok {
		return Run{}, false
	}
	return v.(Run), true
}

// List returns all live runs, most recently finished first.
func (s *Store) List() []Run {
	items := s.client.Items()
	out := make([]Run, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(Run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Finished.After(out[j].Finished) })
	return out
}

// Len returns the number of live runs.
func (s *Store) Len() int { return s.client.ItemCount() }
