package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultDetectorURL = "http://localhost:8500"

	// maxDetectorInput is the largest image edge shipped to the sidecar.
	// Larger images are downscaled before upload; returned boxes are
	// rescaled back into original coordinates.
	maxDetectorInput = 1600
)

// Client talks to a face detection sidecar over HTTP. The sidecar accepts
// a base64 image and responds with detected faces, their pose, and
// embeddings.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a sidecar client. An empty baseURL falls back to the
// default local sidecar address.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type detectRequest struct {
	Image string `json:"image"` // base64 encoded
	Model string `json:"model,omitempty"`
}

type detectResponse struct {
	Faces []struct {
		BBox      [4]float64 `json:"bbox"`
		Pose      [3]float64 `json:"pose"` // yaw, pitch, roll in degrees
		Embedding []float32  `json:"embedding"`
		Score     float64    `json:"score"`
	} `json:"faces"`
}

// Detect sends the image to the sidecar and returns the detected faces in
// original image coordinates.
func (c *Client) Detect(ctx context.Context, image []byte) ([]Face, error) {
	upload, scale, err := FitForUpload(image, maxDetectorInput)
	if err != nil {
		return nil, fmt.Errorf("preparing image for detector: %w", err)
	}

	reqBody, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(upload),
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("building detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding detect response: %w", err)
	}

	faces := make([]Face, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		face := Face{
			Yaw:       f.Pose[0],
			Pitch:     f.Pose[1],
			Roll:      f.Pose[2],
			Embedding: f.Embedding,
			Score:     f.Score,
		}
		// Boxes come back in upload coordinates; rescale to the original.
		for i, v := range f.BBox {
			face.Box[i] = v / scale
		}
		faces = append(faces, face)
	}

	return faces, nil
}
