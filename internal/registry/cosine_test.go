package registry

import (
	"math"
	"testing"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	a := []float32{0.5, 0.5, 0.5, 0.5}

	sim, ok := CosineSimilarity(a, a)
	if !ok {
		t.Fatal("expected comparable vectors")
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0 for identical vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	sim, ok := CosineSimilarity(a, b)
	if !ok {
		t.Fatal("expected comparable vectors")
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("expected similarity 0 for orthogonal vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}

	sim, ok := CosineSimilarity(a, b)
	if !ok {
		t.Fatal("expected comparable vectors")
	}
	if math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("expected similarity -1 for opposite vectors, got %f", sim)
	}
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}

	if _, ok := CosineSimilarity(a, b); ok {
		t.Error("expected zero-norm vector to be incomparable")
	}
	if _, ok := CosineSimilarity(b, a); ok {
		t.Error("expected zero-norm vector to be incomparable (swapped)")
	}
}

func TestCosineSimilarity_LengthMismatch(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{1, 2, 3}

	if _, ok := CosineSimilarity(a, b); ok {
		t.Error("expected mismatched lengths to be incomparable")
	}
}

func TestCosineSimilarity_Empty(t *testing.T) {
	if _, ok := CosineSimilarity(nil, nil); ok {
		t.Error("expected empty vectors to be incomparable")
	}
}

func TestCosineSimilarity_ScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{2, 4, 6}

	sim, ok := CosineSimilarity(a, b)
	if !ok {
		t.Fatal("expected comparable vectors")
	}
	if math.Abs(sim-1.0) > 1e-6 {
		t.Errorf("expected similarity 1.0 for scaled vector, got %f", sim)
	}
}

func TestCheckDim(t *testing.T) {
	good := make([]float32, Dim)
	bad := make([]float32, 128)

	if err := CheckDim([][]float32{good}); err != nil {
		t.Errorf("expected %d-dim embedding to pass, got %v", Dim, err)
	}
	if err := CheckDim([][]float32{good, bad}); err == nil {
		t.Error("expected dimension error for 128-dim embedding")
	}
}

func TestCheckQueryDim(t *testing.T) {
	if err := CheckQueryDim(make([]float32, Dim)); err != nil {
		t.Errorf("expected %d-dim query to pass, got %v", Dim, err)
	}
	if err := CheckQueryDim(make([]float32, 64)); err == nil {
		t.Error("expected dimension error for 64-dim query")
	}
}
