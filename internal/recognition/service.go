package recognition

import (
	"context"
	"errors"
	"log"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/facereg/facereg/internal/registry"
)

// RegisterResult summarizes a successful register or update call.
type RegisterResult struct {
	EmbeddingsStored int
	AverageQuality   float64
}

// VerifyResult is the outcome of a verification. The zero value means
// "no match", which is a normal outcome rather than an error.
type VerifyResult struct {
	PersonID   string
	Similarity float64
	BestImage  []byte
}

// Matched reports whether the verification found a registered person.
func (r VerifyResult) Matched() bool {
	return r.PersonID != ""
}

// Service wires the extraction pipeline to a vector registry and
// implements the register / verify / update / delete workflows.
type Service struct {
	pipeline  *Pipeline
	registry  registry.Registry
	threshold float64
}

func NewService(pipeline *Pipeline, reg registry.Registry, threshold float64) *Service {
	return &Service{
		pipeline:  pipeline,
		registry:  reg,
		threshold: threshold,
	}
}

// NormalizePersonID canonicalizes a caller-supplied person ID: surrounding
// whitespace is dropped and the string is NFC-normalized so that visually
// identical IDs compare equal.
func NormalizePersonID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// Register extracts embeddings from all images (each must contain exactly
// one face) and stores them under personID. The source image of the
// highest-quality embedding becomes the person's best image. Fails with a
// person_exists error when the ID is already registered.
func (s *Service) Register(ctx context.Context, personID string, images [][]byte) (RegisterResult, error) {
	personID = NormalizePersonID(personID)

	// Early check for a friendly failure before any model work. The
	// authoritative guard is the store's uniqueness constraint below.
	exists, err := s.registry.Exists(ctx, personID)
	if err != nil {
		return RegisterResult{}, s.storageError(personID, "existence check failed", err)
	}
	if exists {
		return RegisterResult{}, &Error{
			Kind:       KindPersonExists,
			Message:    "person is already registered",
			PersonID:   personID,
			ImageIndex: -1,
		}
	}

	extractions, best, avg, err := s.extractBatch(ctx, personID, images)
	if err != nil {
		return RegisterResult{}, err
	}

	count, err := s.registry.Store(ctx, personID, embeddingsOf(extractions), best)
	if err != nil {
		if errors.Is(err, registry.ErrPersonExists) {
			// Lost a race with a concurrent registration of the same ID.
			return RegisterResult{}, &Error{
				Kind:       KindPersonExists,
				Message:    "person is already registered",
				PersonID:   personID,
				ImageIndex: -1,
				Err:        err,
			}
		}
		return RegisterResult{}, s.storageError(personID, "storing embeddings failed", err)
	}

	return RegisterResult{EmbeddingsStored: count, AverageQuality: avg}, nil
}

// Verify extracts an embedding from a single image (the most prominent
// face wins when several are present) and looks up the closest registered
// person. A zero-value result means nobody matched above the threshold.
func (s *Service) Verify(ctx context.Context, image []byte) (VerifyResult, error) {
	extractions, err := s.pipeline.Extract(ctx, [][]byte{image}, true)
	if err != nil {
		return VerifyResult{}, err
	}

	query := extractions[0].Embedding
	if err := registry.CheckQueryDim(query); err != nil {
		return VerifyResult{}, &Error{Kind: KindModel, Message: err.Error(), ImageIndex: 0, Err: err}
	}

	matches, err := s.registry.Search(ctx, query, s.threshold, 1)
	if err != nil {
		return VerifyResult{}, s.storageError("", "similarity search failed", err)
	}
	if len(matches) == 0 {
		return VerifyResult{}, nil
	}

	m := matches[0]
	return VerifyResult{
		PersonID:   m.PersonID,
		Similarity: m.Similarity,
		BestImage:  m.BestImage,
	}, nil
}

// Update replaces all stored embeddings and the best image for personID.
// Updating an unknown person silently registers it; callers wanting strict
// update-only semantics should call Exists first.
func (s *Service) Update(ctx context.Context, personID string, images [][]byte) (RegisterResult, error) {
	personID = NormalizePersonID(personID)

	extractions, best, avg, err := s.extractBatch(ctx, personID, images)
	if err != nil {
		return RegisterResult{}, err
	}

	count, err := s.registry.Update(ctx, personID, embeddingsOf(extractions), best)
	if err != nil {
		return RegisterResult{}, s.storageError(personID, "replacing embeddings failed", err)
	}

	return RegisterResult{EmbeddingsStored: count, AverageQuality: avg}, nil
}

// Delete removes a person and all their embeddings. Returns false when no
// such person was registered, which is not an error.
func (s *Service) Delete(ctx context.Context, personID string) (bool, error) {
	personID = NormalizePersonID(personID)

	removed, err := s.registry.Delete(ctx, personID)
	if err != nil {
		return false, s.storageError(personID, "delete failed", err)
	}
	return removed, nil
}

// Exists reports whether personID has at least one stored embedding.
func (s *Service) Exists(ctx context.Context, personID string) (bool, error) {
	exists, err := s.registry.Exists(ctx, NormalizePersonID(personID))
	if err != nil {
		return false, s.storageError(personID, "existence check failed", err)
	}
	return exists, nil
}

// Healthy probes the backing store.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.registry.HealthCheck(ctx)
}

// extractBatch runs the single-face pipeline over a registration batch
// and picks the best image (highest quality, first on ties) plus the mean
// quality across all images.
func (s *Service) extractBatch(ctx context.Context, personID string, images [][]byte) ([]Extraction, []byte, float64, error) {
	extractions, err := s.pipeline.Extract(ctx, images, false)
	if err != nil {
		var re *Error
		if errors.As(err, &re) && re.PersonID == "" {
			re.PersonID = personID
		}
		return nil, nil, 0, err
	}
	if len(extractions) == 0 {
		return nil, nil, 0, &Error{
			Kind:       KindFaceNotDetected,
			Message:    "no images produced an embedding",
			PersonID:   personID,
			ImageIndex: -1,
		}
	}

	if err := registry.CheckDim(embeddingsOf(extractions)); err != nil {
		return nil, nil, 0, &Error{Kind: KindModel, Message: err.Error(), PersonID: personID, ImageIndex: -1, Err: err}
	}

	best := extractions[0]
	sum := 0.0
	for _, e := range extractions {
		sum += e.Quality
		if e.Quality > best.Quality {
			best = e
		}
	}

	return extractions, best.Image, sum / float64(len(extractions)), nil
}

func embeddingsOf(extractions []Extraction) [][]float32 {
	out := make([][]float32, len(extractions))
	for i, e := range extractions {
		out[i] = e.Embedding
	}
	return out
}

func (s *Service) storageError(personID, msg string, err error) error {
	log.Printf("storage error: %s: %v", msg, err)
	return &Error{
		Kind:       KindStorage,
		Message:    msg,
		PersonID:   personID,
		ImageIndex: -1,
		Err:        err,
	}
}
