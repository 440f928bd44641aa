package recognition

import (
	"image"
	"math"
	"testing"

	"github.com/facereg/facereg/internal/detect"
)

// grayImage builds a uniform image with the given intensity.
func grayImage(width, height int, level uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

func TestSizeScore(t *testing.T) {
	tests := []struct {
		name string
		area float64
		want float64
	}{
		{"reference area", 22500, 1.0},
		{"half area", 11250, 0.5},
		{"oversized saturates", 90000, 1.0},
		{"zero", 0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sizeScore(tt.area); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("sizeScore(%f) = %f, want %f", tt.area, got, tt.want)
			}
		})
	}
}

func TestPoseScore(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
		want  float64
	}{
		{"frontal", 0, 1.0},
		{"ten degrees", 10, 0.6},
		{"at threshold", 25, 0.0},
		{"beyond threshold clamps", 30, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := poseScore(tt.angle); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("poseScore(%f) = %f, want %f", tt.angle, got, tt.want)
			}
		})
	}
}

func TestBrightnessScore(t *testing.T) {
	box := [4]float64{0, 0, 100, 100}

	tests := []struct {
		name  string
		level uint8
		want  float64
	}{
		{"well exposed", 130, 1.0},
		{"lower bound", 60, 1.0},
		{"upper bound", 200, 1.0},
		{"overexposed", 230, 1.0 - 30.0/70.0},
		{"underexposed", 25, 1.0 - 35.0/70.0},
		{"black clamps to zero", 0, 1.0 - 60.0/70.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := brightnessScore(grayImage(100, 100, tt.level), box)
			if !ok {
				t.Fatal("expected brightness to be computable")
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("brightnessScore = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestBrightnessScore_EmptyCrop(t *testing.T) {
	img := grayImage(100, 100, 130)

	// Box entirely outside the image.
	if _, ok := brightnessScore(img, [4]float64{500, 500, 600, 600}); ok {
		t.Error("expected out-of-bounds crop to be skipped")
	}
	// Degenerate box.
	if _, ok := brightnessScore(img, [4]float64{50, 50, 50, 50}); ok {
		t.Error("expected zero-area crop to be skipped")
	}
}

func TestScore_Composite(t *testing.T) {
	// 150x150 face, max angle 10, well-exposed crop:
	// size 1.0, pose 0.6, brightness 1.0 -> mean 0.8667.
	img := grayImage(300, 300, 130)
	face := detect.Face{
		Box: [4]float64{10, 10, 160, 160},
		Yaw: 10, Pitch: 5, Roll: 3,
	}

	got := Score(img, face)
	if math.Abs(got-2.6/3.0) > 1e-4 {
		t.Errorf("Score = %f, want %f", got, 2.6/3.0)
	}
}

func TestScore_EmptyCropAveragesTwoTerms(t *testing.T) {
	// Box outside the image: only size and pose count.
	img := grayImage(100, 100, 130)
	face := detect.Face{
		Box: [4]float64{500, 500, 650, 650}, // 150x150, size 1.0
		Yaw: 10,
	}

	got := Score(img, face)
	want := (1.0 + 0.6) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %f, want %f (brightness omitted, not zeroed)", got, want)
	}
}

func TestScore_Deterministic(t *testing.T) {
	img := grayImage(200, 200, 90)
	face := detect.Face{Box: [4]float64{20, 20, 140, 140}, Pitch: -7}

	a := Score(img, face)
	b := Score(img, face)
	if a != b {
		t.Errorf("expected identical inputs to score identically: %f vs %f", a, b)
	}
	if a < 0 || a > 1 {
		t.Errorf("score out of range: %f", a)
	}
}
