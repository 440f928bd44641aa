package sqlstore

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/facereg/facereg/internal/registry"
)

// newSQLiteStore opens a fresh in-memory database per test.
func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVec(sim float64) []float32 {
	v := make([]float32, registry.Dim)
	v[0] = float32(sim)
	v[1] = float32(math.Sqrt(1 - sim*sim))
	return v
}

func basisVec() []float32 {
	v := make([]float32, registry.Dim)
	v[0] = 1
	return v
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("postgres", "whatever"); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := Open("sqlite", ""); err == nil {
		t.Error("expected error for empty DSN")
	}
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0.5, -1.25, 0, 3.75}

	decoded, err := decodeVector(encodeVector(vec))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("expected %d components, got %d", len(vec), len(decoded))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("component %d: got %f, want %f", i, decoded[i], vec[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob not divisible by 4")
	}
}

func TestStoreAndSearch(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	vec := basisVec()
	count, err := s.Store(ctx, "alice", [][]float32{vec}, []byte("img"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored, got %d", count)
	}

	matches, err := s.Search(ctx, vec, 0, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.PersonID != "alice" {
		t.Errorf("expected alice, got %s", m.PersonID)
	}
	if math.Abs(m.Similarity-1.0) > 1e-6 {
		t.Errorf("expected round-trip similarity 1.0, got %f", m.Similarity)
	}
	if string(m.BestImage) != "img" {
		t.Errorf("unexpected best image %q", m.BestImage)
	}
}

func TestStore_EmptyEmbeddings(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	count, err := s.Store(ctx, "alice", nil, []byte("img"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no-op for empty batch, got %d", count)
	}
	if exists, _ := s.Exists(ctx, "alice"); exists {
		t.Error("expected no person for empty batch")
	}
}

func TestStore_DuplicatePerson(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "alice", [][]float32{basisVec()}, []byte("first")); err != nil {
		t.Fatalf("first Store failed: %v", err)
	}

	_, err := s.Store(ctx, "alice", [][]float32{unitVec(0.5)}, []byte("second"))
	if !errors.Is(err, registry.ErrPersonExists) {
		t.Fatalf("expected ErrPersonExists, got %v", err)
	}

	// The conflict rolled back; the first registration is intact.
	matches, _ := s.Search(ctx, basisVec(), 0.9, 5)
	if len(matches) != 1 || string(matches[0].BestImage) != "first" {
		t.Error("expected original registration to survive the conflict")
	}
}

func TestSearch_ThresholdOrderingLimit(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	for _, p := range []struct {
		id  string
		sim float64
	}{
		{"low", 0.50},
		{"high", 0.75},
		{"mid", 0.62},
	} {
		if _, err := s.Store(ctx, p.id, [][]float32{unitVec(p.sim)}, nil); err != nil {
			t.Fatalf("Store %s failed: %v", p.id, err)
		}
	}

	matches, err := s.Search(ctx, basisVec(), 0.6, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].PersonID != "high" || matches[1].PersonID != "mid" {
		t.Errorf("unexpected order: %s, %s", matches[0].PersonID, matches[1].PersonID)
	}
}

func TestSearch_ZeroNormQuery(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "alice", [][]float32{basisVec()}, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	matches, err := s.Search(ctx, make([]float32, registry.Dim), 0, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Error("expected zero-norm query to match nothing")
	}
}

func TestDelete(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, "alice", [][]float32{basisVec(), unitVec(0.9)}, nil); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	removed, err := s.Delete(ctx, "alice")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("expected delete to report removal")
	}
	if exists, _ := s.Exists(ctx, "alice"); exists {
		t.Error("expected person gone after delete")
	}
	matches, _ := s.Search(ctx, basisVec(), 0, 10)
	if len(matches) != 0 {
		t.Errorf("expected all embeddings removed, got %d matches", len(matches))
	}

	removed, err = s.Delete(ctx, "alice")
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if removed {
		t.Error("expected delete of missing person to report false, not error")
	}
}

func TestUpdate_ReplacesEmbeddings(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	old := basisVec()
	if _, err := s.Store(ctx, "alice", [][]float32{old}, []byte("old")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	replacement := make([]float32, registry.Dim)
	replacement[5] = 1

	count, err := s.Update(ctx, "alice", [][]float32{replacement}, []byte("new"))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 stored, got %d", count)
	}

	matches, _ := s.Search(ctx, old, 0.5, 5)
	if len(matches) != 0 {
		t.Errorf("expected pre-update embedding gone, got %d matches", len(matches))
	}
	matches, _ = s.Search(ctx, replacement, 0.9, 1)
	if len(matches) != 1 || string(matches[0].BestImage) != "new" {
		t.Error("expected replacement embedding and best image")
	}
}

func TestUpdate_CreatesWhenMissing(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	count, err := s.Update(ctx, "ghost", [][]float32{basisVec()}, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected update on unknown person to create it, got %d", count)
	}
	if exists, _ := s.Exists(ctx, "ghost"); !exists {
		t.Error("expected person to exist after update-create")
	}
}

func TestHealthCheck(t *testing.T) {
	s := newSQLiteStore(t)
	if !s.HealthCheck(context.Background()) {
		t.Error("expected open store to be healthy")
	}

	s.Close()
	if s.HealthCheck(context.Background()) {
		t.Error("expected closed store to be unhealthy")
	}
}
