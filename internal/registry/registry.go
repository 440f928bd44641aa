// Package registry defines the vector registry contract shared by the
// storage backends: per-person face embeddings with similarity search,
// atomic person uniqueness, and replace-on-update semantics.
package registry

import (
	"context"
	"errors"
	"fmt"
)

// Dim is the fixed dimensionality of every stored and queried embedding.
const Dim = 512

// ErrPersonExists is returned by Store when the person ID is already
// registered. Backends enforce this atomically (unique key or a single
// write lock), never as a separate check followed by an insert.
var ErrPersonExists = errors.New("person already exists")

// ErrDimension is returned when a stored or queried vector does not have
// exactly Dim elements.
var ErrDimension = errors.New("embedding dimension mismatch")

// Match is a single search hit.
type Match struct {
	PersonID   string
	Similarity float64
	BestImage  []byte
}

// Registry stores face embeddings keyed by person ID. Implementations must
// be safe for concurrent use; Store, Update and Delete for the same person
// ID are applied atomically with respect to each other.
type Registry interface {
	// Store persists a new person together with all embeddings. It is a
	// no-op returning 0 when embeddings is empty, and fails with
	// ErrPersonExists when the person ID is already present. On any
	// failure nothing is persisted.
	Store(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error)

	// Search returns matches with cosine similarity >= threshold, ordered
	// by descending similarity and capped at limit. One match is produced
	// per stored embedding, not per person. Zero-norm vectors never match.
	Search(ctx context.Context, query []float32, threshold float64, limit int) ([]Match, error)

	// Exists reports whether at least one embedding is stored for the
	// person ID.
	Exists(ctx context.Context, personID string) (bool, error)

	// Update replaces all embeddings and the best image for the person ID.
	// A missing person is created rather than reported as an error.
	Update(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error)

	// Delete removes the person and every owned embedding. It returns
	// false without an error when the person does not exist.
	Delete(ctx context.Context, personID string) (bool, error)

	// HealthCheck probes the backing store. It never returns an error;
	// all failures collapse to false.
	HealthCheck(ctx context.Context) bool
}

// CheckDim validates that every vector has exactly Dim elements.
func CheckDim(embeddings [][]float32) error {
	for i, emb := range embeddings {
		if len(emb) != Dim {
			return fmt.Errorf("embedding %d has %d dimensions, want %d: %w", i, len(emb), Dim, ErrDimension)
		}
	}
	return nil
}

// CheckQueryDim validates a single query vector.
func CheckQueryDim(query []float32) error {
	if len(query) != Dim {
		return fmt.Errorf("query has %d dimensions, want %d: %w", len(query), Dim, ErrDimension)
	}
	return nil
}
