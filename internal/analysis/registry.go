package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agendawatch/internal/blobstore"

	gocache "github.com/patrickmn/go-cache"
)

// Profile is the per-municipality classifier configuration: where the
// lawyer-provided criteria document lives and what property context to attach
// to every submission.
type Profile struct {
	Municipality    string `json:"municipality"`
	CriteriaKey     string `json:"criteria_key"`
	PropertyContext string `json:"property_context"`
}

// Registry replaces the source system's process-global agent cache: built
// once at startup, passed by reference into the pipeline. Criteria documents
// are fetched from the blob store and held in a TTL cache so sequential chunk
// submissions do not re-read them.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	store    blobstore.Store
	criteria *gocache.Cache
}

func NewRegistry(store blobstore.Store, criteriaTTL time.Duration) *Registry {
	if criteriaTTL <= 0 {
		criteriaTTL = 15 * time.Minute
	}
	return &Registry{
		profiles: map[string]Profile{},
		store:    store,
		criteria: gocache.New(criteriaTTL, 2*criteriaTTL),
	}
}

func (r *Registry) Register(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Municipality] = p
}

// Profile returns the registered profile, or a default one pointing at the
// conventional criteria key for municipalities configured only through the
// blob store layout.
func (r *Registry) Profile(municipality string) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[municipality]; ok {
		return p
	}
	return Profile{Municipality: municipality, CriteriaKey: "criteria/" + municipality + ".txt"}
}

// Criteria returns the flagging criteria text for a municipality, cached.
func (r *Registry) Criteria(ctx context.Context, municipality string) (string, error) {
	p := r.Profile(municipality)
	if cached, ok := r.criteria.Get(p.CriteriaKey); ok {
		return cached.(string), nil
	}
	b, err := r.store.Get(ctx, p.CriteriaKey)
	if err != nil {
		return "", fmt.Errorf("load criteria for %s: %w", municipality, err)
	}
	text := string(b)
	r.criteria.Set(p.CriteriaKey, text, gocache.DefaultExpiration)
	return text, nil
}
