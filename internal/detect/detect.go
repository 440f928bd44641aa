// Package detect is the boundary to the external face detection and
// embedding capability. The model itself runs out of process; this package
// only ships images to it and hands back detected faces.
package detect

import "context"

// Face is a single detection returned by the model: bounding box and pose
// in original image coordinates, plus the identity embedding.
type Face struct {
	// Box holds the bounding box as x1, y1, x2, y2 in pixels.
	Box [4]float64

	// Pose angles in degrees.
	Yaw   float64
	Pitch float64
	Roll  float64

	// Embedding is the identity vector (512 floats for the supported
	// models).
	Embedding []float32

	// Score is the raw detector confidence.
	Score float64
}

// Area returns the bounding box area in square pixels. Degenerate boxes
// yield 0.
func (f Face) Area() float64 {
	w := f.Box[2] - f.Box[0]
	h := f.Box[3] - f.Box[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// MaxPoseAngle returns the largest absolute pose deviation in degrees.
func (f Face) MaxPoseAngle() float64 {
	m := abs(f.Yaw)
	if a := abs(f.Pitch); a > m {
		m = a
	}
	if a := abs(f.Roll); a > m {
		m = a
	}
	return m
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Detector produces zero or more faces for an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Face, error)
}
