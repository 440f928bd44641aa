package recognition

import (
	"image"
	"image/color"
	"math"

	"github.com/facereg/facereg/internal/detect"
)

const (
	// minFaceArea is the reference face size in square pixels (150x150).
	// Faces at or above it get a full size score.
	minFaceArea = 22500.0

	// maxPoseAngle is the head rotation in degrees at which the pose
	// score bottoms out.
	maxPoseAngle = 25.0

	// Brightness range considered well exposed.
	brightnessLow  = 60.0
	brightnessHigh = 200.0
)

// Score rates a detected face in [0,1] as the mean of up to three
// components: face size, pose deviation, and crop brightness. The
// brightness term is skipped entirely when the bounding box does not
// cover any pixels of the image.
func Score(img image.Image, face detect.Face) float64 {
	scores := []float64{
		sizeScore(face.Area()),
		poseScore(face.MaxPoseAngle()),
	}
	if b, ok := brightnessScore(img, face.Box); ok {
		scores = append(scores, b)
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func sizeScore(area float64) float64 {
	return math.Min(1.0, area/minFaceArea)
}

func poseScore(maxAngle float64) float64 {
	return math.Max(0.0, 1.0-maxAngle/maxPoseAngle)
}

// brightnessScore averages grayscale intensity over the face crop. Full
// score inside [60,200], linear falloff outside with zero reached 70
// levels past the nearer bound. Returns false when the crop is empty.
func brightnessScore(img image.Image, box [4]float64) (float64, bool) {
	crop := image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3]))
	crop = crop.Intersect(img.Bounds())
	if crop.Empty() {
		return 0, false
	}

	var sum float64
	for y := crop.Min.Y; y < crop.Max.Y; y++ {
		for x := crop.Min.X; x < crop.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			sum += float64(g.Y)
		}
	}
	mean := sum / float64(crop.Dx()*crop.Dy())

	if mean >= brightnessLow && mean <= brightnessHigh {
		return 1.0, true
	}
	diff := math.Min(math.Abs(mean-brightnessLow), math.Abs(mean-brightnessHigh))
	half := (brightnessHigh - brightnessLow) / 2
	return math.Max(0.0, 1.0-diff/half), true
}
