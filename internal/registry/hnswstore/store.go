// Package hnswstore implements the vector registry on an in-process HNSW
// graph with cosine distance. The collection lives in memory and is
// snapshotted to disk after every mutation, so a restart picks up where
// the process left off.
package hnswstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/facereg/facereg/internal/registry"
)

const (
	// maxNeighbors is the HNSW M parameter.
	maxNeighbors = 16

	// searchMultiplier over-fetches graph candidates so that threshold
	// filtering still fills the requested limit.
	searchMultiplier = 10
)

type point struct {
	personID string
	vector   []float32
}

type personRecord struct {
	pointIDs  []string
	bestImage []byte
}

// Store keeps one graph node per embedding, keyed by a generated point ID
// whose payload maps back to the owning person. The graph cannot remove
// nodes, so deleted points stay as tombstones and are filtered out of
// search results; the graph is rebuilt once tombstones outnumber live
// points.
type Store struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[string]
	points     map[string]*point
	persons    map[string]*personRecord
	tombstones int
	path       string
}

// New opens the named collection. With a non-empty dir the collection is
// persisted to <dir>/<collection>.gob and loaded from there when present.
func New(collection, dir string) (*Store, error) {
	s := &Store{
		points:  make(map[string]*point),
		persons: make(map[string]*personRecord),
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		s.path = filepath.Join(dir, collection+".gob")
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

func (s *Store) Store(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Uniqueness is enforced here, under the write lock, not by a
	// separate exists call.
	if _, ok := s.persons[personID]; ok {
		return 0, registry.ErrPersonExists
	}

	s.insertLocked(personID, embeddings, bestImage)

	if err := s.persistLocked(); err != nil {
		s.removeLocked(personID)
		return 0, err
	}
	return len(embeddings), nil
}

func (s *Store) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]registry.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph == nil || len(s.points) == 0 {
		return nil, nil
	}

	searchK := limit * searchMultiplier
	if searchK < 100 {
		searchK = 100
	}

	var matches []registry.Match
	for _, n := range s.graph.Search(query, searchK) {
		p, ok := s.points[n.Key]
		if !ok {
			continue // tombstone
		}
		sim, ok := registry.CosineSimilarity(query, p.vector)
		if !ok || sim < threshold {
			continue
		}
		rec := s.persons[p.personID]
		matches = append(matches, registry.Match{
			PersonID:   p.personID,
			Similarity: sim,
			BestImage:  rec.bestImage,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) Exists(ctx context.Context, personID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.persons[personID]
	return ok && len(rec.pointIDs) > 0, nil
}

func (s *Store) Update(ctx context.Context, personID string, embeddings [][]float32, bestImage []byte) (int, error) {
	if len(embeddings) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Delete-then-store under one lock, so a concurrent call for the
	// same person never sees a half-replaced state.
	s.removeLocked(personID)
	s.insertLocked(personID, embeddings, bestImage)
	s.compactLocked()

	if err := s.persistLocked(); err != nil {
		return 0, err
	}
	return len(embeddings), nil
}

func (s *Store) Delete(ctx context.Context, personID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(personID) {
		return false, nil
	}
	s.compactLocked()

	if err := s.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// HealthCheck verifies the snapshot location is usable. A purely
// in-memory store is always healthy.
func (s *Store) HealthCheck(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return true
	}
	info, err := os.Stat(filepath.Dir(s.path))
	return err == nil && info.IsDir()
}

// Count returns the number of live embeddings, for diagnostics.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *Store) insertLocked(personID string, embeddings [][]float32, bestImage []byte) {
	if s.graph == nil {
		s.graph = newGraph()
	}

	rec := &personRecord{bestImage: bestImage}
	for _, emb := range embeddings {
		id := uuid.NewString()
		s.points[id] = &point{personID: personID, vector: emb}
		s.graph.Add(hnsw.MakeNode(id, emb))
		rec.pointIDs = append(rec.pointIDs, id)
	}
	s.persons[personID] = rec
}

func (s *Store) removeLocked(personID string) bool {
	rec, ok := s.persons[personID]
	if !ok {
		return false
	}
	for _, id := range rec.pointIDs {
		delete(s.points, id)
		s.tombstones++
	}
	delete(s.persons, personID)
	return true
}

// compactLocked rebuilds the graph from live points once tombstones
// dominate, keeping search from wading through dead nodes.
func (s *Store) compactLocked() {
	if s.tombstones <= len(s.points) {
		return
	}

	if len(s.points) == 0 {
		s.graph = nil
	} else {
		g := newGraph()
		for id, p := range s.points {
			g.Add(hnsw.MakeNode(id, p.vector))
		}
		s.graph = g
	}
	s.tombstones = 0
}

type savedPoint struct {
	ID       string
	PersonID string
	Vector   []float32
}

type savedPerson struct {
	ID        string
	PointIDs  []string
	BestImage []byte
}

type snapshot struct {
	Points  []savedPoint
	Persons []savedPerson
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}

	snap := snapshot{
		Points:  make([]savedPoint, 0, len(s.points)),
		Persons: make([]savedPerson, 0, len(s.persons)),
	}
	for id, p := range s.points {
		snap.Points = append(snap.Points, savedPoint{ID: id, PersonID: p.personID, Vector: p.vector})
	}
	for id, rec := range s.persons {
		snap.Persons = append(snap.Persons, savedPerson{ID: id, PointIDs: rec.pointIDs, BestImage: rec.bestImage})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encoding collection snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing collection snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing collection snapshot: %w", err)
	}
	return nil
}

// load restores the maps from the snapshot and rebuilds the graph from
// scratch, which also drops any tombstones the snapshot carried.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading collection snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decoding collection snapshot: %w", err)
	}

	for _, p := range snap.Points {
		s.points[p.ID] = &point{personID: p.PersonID, vector: p.Vector}
	}
	for _, rec := range snap.Persons {
		s.persons[rec.ID] = &personRecord{pointIDs: rec.PointIDs, bestImage: rec.BestImage}
	}

	if len(s.points) > 0 {
		g := newGraph()
		for id, p := range s.points {
			g.Add(hnsw.MakeNode(id, p.vector))
		}
		s.graph = g
	}
	return nil
}

var _ registry.Registry = (*Store)(nil)
