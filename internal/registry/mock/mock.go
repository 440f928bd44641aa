// Package mock provides an in-memory Registry for tests, with per-method
// error injection.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/facereg/facereg/internal/registry"
)

type person struct {
	embeddings [][]float32
	bestImage  []byte
}

// Registry is a map-backed registry. The zero value is not usable; call
// New. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	persons map[string]*person

	// Injected failures, returned verbatim when set.
	StoreErr  error
	SearchErr error
	ExistsErr error
	UpdateErr error
	DeleteErr error
	Unhealthy bool
}

func New() *Registry {
	return &Registry{persons: make(map[string]*person)}
}

func (r *Registry) Store(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error) {
	if r.StoreErr != nil {
		return 0, r.StoreErr
	}
	if len(embeddings) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.persons[personID]; ok {
		return 0, registry.ErrPersonExists
	}
	r.persons[personID] = &person{embeddings: embeddings, bestImage: bestImage}
	return len(embeddings), nil
}

func (r *Registry) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]registry.Match, error) {
	if r.SearchErr != nil {
		return nil, r.SearchErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []registry.Match
	for id, p := range r.persons {
		for _, emb := range p.embeddings {
			sim, ok := registry.CosineSimilarity(query, emb)
			if !ok || sim < threshold {
				continue
			}
			matches = append(matches, registry.Match{PersonID: id, Similarity: sim, BestImage: p.bestImage})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *Registry) Exists(ctx context.Context, personID string) (bool, error) {
	if r.ExistsErr != nil {
		return false, r.ExistsErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.persons[personID]
	return ok, nil
}

func (r *Registry) Update(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error) {
	if r.UpdateErr != nil {
		return 0, r.UpdateErr
	}
	if len(embeddings) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.persons[personID] = &person{embeddings: embeddings, bestImage: bestImage}
	return len(embeddings), nil
}

func (r *Registry) Delete(ctx context.Context, personID string) (bool, error) {
	if r.DeleteErr != nil {
		return false, r.DeleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.persons[personID]; !ok {
		return false, nil
	}
	delete(r.persons, personID)
	return true, nil
}

func (r *Registry) HealthCheck(ctx context.Context) bool {
	return !r.Unhealthy
}

// Embeddings returns the stored vectors for a person, for assertions.
func (r *Registry) Embeddings(personID string) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.persons[personID]
	if !ok {
		return nil
	}
	return p.embeddings
}

// BestImage returns the stored best image for a person, for assertions.
func (r *Registry) BestImage(personID string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.persons[personID]
	if !ok {
		return nil
	}
	return p.bestImage
}

var _ registry.Registry = (*Registry)(nil)
