// Package recognition holds the face recognition core: quality scoring,
// the per-image extraction pipeline, and the service tying pipeline and
// registry together.
package recognition

import (
	"bytes"
	"context"
	"image"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/facereg/facereg/internal/detect"
)

// minQuality is the lowest composite quality score accepted for storage
// or matching. The boundary is inclusive.
const minQuality = 0.4

// Extraction is one successfully processed image: its identity embedding,
// the composite quality score, and the original bytes for best-image
// selection.
type Extraction struct {
	Embedding []float32
	Quality   float64
	Image     []byte
}

// Pipeline turns raw images into quality-gated embeddings using an
// external detector.
type Pipeline struct {
	detector detect.Detector
}

func NewPipeline(detector detect.Detector) *Pipeline {
	return &Pipeline{detector: detector}
}

// Extract processes images in order and returns one extraction per image.
// The first failing image aborts the whole batch; there are no partial
// results. With allowMultiple set, an image with several faces keeps the
// one with the largest bounding box (ties: first reported); otherwise it
// is rejected.
func (p *Pipeline) Extract(ctx context.Context, images [][]byte, allowMultiple bool) ([]Extraction, error) {
	results := make([]Extraction, 0, len(images))
	for i, img := range images {
		ext, err := p.extractOne(ctx, i, img, allowMultiple)
		if err != nil {
			return nil, err
		}
		results = append(results, ext)
	}
	return results, nil
}

func (p *Pipeline) extractOne(ctx context.Context, index int, data []byte, allowMultiple bool) (Extraction, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Extraction{}, &Error{
			Kind:       KindModel,
			Message:    "failed to decode image",
			ImageIndex: index,
			Err:        err,
		}
	}

	faces, err := p.detector.Detect(ctx, data)
	if err != nil {
		return Extraction{}, &Error{
			Kind:       KindModel,
			Message:    "face detection failed",
			ImageIndex: index,
			Err:        err,
		}
	}

	if len(faces) == 0 {
		return Extraction{}, NewImageError(KindFaceNotDetected, index, "no face detected")
	}
	if len(faces) > 1 && !allowMultiple {
		return Extraction{}, NewImageError(KindMultipleFaces, index, "found %d faces, expected exactly one", len(faces))
	}

	face := largestFace(faces)

	quality := Score(decoded, face)
	if quality < minQuality {
		return Extraction{}, NewImageError(KindPoorQuality, index, "quality %.2f below minimum %.2f", quality, minQuality)
	}

	return Extraction{
		Embedding: face.Embedding,
		Quality:   quality,
		Image:     data,
	}, nil
}

// largestFace picks the face with the biggest bounding box, keeping the
// first one on ties.
func largestFace(faces []detect.Face) detect.Face {
	best := faces[0]
	bestArea := best.Area()
	for _, f := range faces[1:] {
		if a := f.Area(); a > bestArea {
			best = f
			bestArea = a
		}
	}
	return best
}
