package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facereg/facereg/internal/recognition"
)

const errInvalidRequestBody = "invalid request body"

type handler struct {
	svc       *recognition.Service
	maxImages int
}

func newHandler(svc *recognition.Service, maxImages int) *handler {
	return &handler{svc: svc, maxImages: maxImages}
}

type enrollRequest struct {
	PersonID string   `json:"person_id"`
	Images   []string `json:"images"` // base64 encoded
}

type enrollResponse struct {
	PersonID         string  `json:"person_id"`
	EmbeddingsStored int     `json:"embeddings_stored"`
	AverageQuality   float64 `json:"average_quality"`
}

type verifyRequest struct {
	Image string `json:"image"` // base64 encoded
	// Strict turns "no match" into a 404 instead of a matched=false body.
	Strict bool `json:"strict,omitempty"`
}

type verifyResponse struct {
	Matched    bool    `json:"matched"`
	PersonID   string  `json:"person_id,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	BestImage  string  `json:"best_image,omitempty"` // base64 encoded
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	personID, images, ok := h.decodeEnroll(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Register(r.Context(), personID, images)
	if err != nil {
		respondRecognitionError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, enrollResponse{
		PersonID:         recognition.NormalizePersonID(personID),
		EmbeddingsStored: res.EmbeddingsStored,
		AverageQuality:   res.AverageQuality,
	})
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is not valid base64")
		return
	}

	res, err := h.svc.Verify(r.Context(), image)
	if err != nil {
		respondRecognitionError(w, err)
		return
	}

	if !res.Matched() {
		if req.Strict {
			respondRecognitionError(w, recognition.NewError(recognition.KindNoMatch, "no registered person matched"))
			return
		}
		respondJSON(w, http.StatusOK, verifyResponse{Matched: false})
		return
	}

	respondJSON(w, http.StatusOK, verifyResponse{
		Matched:    true,
		PersonID:   res.PersonID,
		Similarity: res.Similarity,
		BestImage:  base64.StdEncoding.EncodeToString(res.BestImage),
	})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	personID, images, ok := h.decodeEnroll(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Update(r.Context(), personID, images)
	if err != nil {
		respondRecognitionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, enrollResponse{
		PersonID:         recognition.NormalizePersonID(personID),
		EmbeddingsStored: res.EmbeddingsStored,
		AverageQuality:   res.AverageQuality,
	})
}

func (h *handler) deletePerson(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personID")
	if recognition.NormalizePersonID(personID) == "" {
		respondError(w, http.StatusBadRequest, "person_id is required")
		return
	}

	removed, err := h.svc.Delete(r.Context(), personID)
	if err != nil {
		respondRecognitionError(w, err)
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Healthy(r.Context()) {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeEnroll validates the shared register/update request shape and
// decodes the image payloads.
func (h *handler) decodeEnroll(w http.ResponseWriter, r *http.Request) (string, [][]byte, bool) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return "", nil, false
	}

	if recognition.NormalizePersonID(req.PersonID) == "" {
		respondError(w, http.StatusBadRequest, "person_id is required")
		return "", nil, false
	}
	if len(req.Images) == 0 {
		respondError(w, http.StatusBadRequest, "at least one image is required")
		return "", nil, false
	}
	if h.maxImages > 0 && len(req.Images) > h.maxImages {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("too many images: %d exceeds limit of %d", len(req.Images), h.maxImages))
		return "", nil, false
	}

	images := make([][]byte, len(req.Images))
	for i, enc := range req.Images {
		data, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("image %d is not valid base64", i))
			return "", nil, false
		}
		images[i] = data
	}

	return req.PersonID, images, true
}

// respondRecognitionError maps error kinds to HTTP status codes.
func respondRecognitionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var re *recognition.Error
	if errors.As(err, &re) {
		switch re.Kind {
		case recognition.KindFaceNotDetected, recognition.KindMultipleFaces, recognition.KindPoorQuality:
			status = http.StatusBadRequest
		case recognition.KindPersonExists:
			status = http.StatusConflict
		case recognition.KindPersonNotFound, recognition.KindNoMatch:
			status = http.StatusNotFound
		case recognition.KindModel:
			status = http.StatusBadGateway
		case recognition.KindStorage:
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{"error": err.Error()}
	if re != nil {
		body["kind"] = string(re.Kind)
		if re.PersonID != "" {
			body["person_id"] = re.PersonID
		}
		if re.ImageIndex >= 0 {
			body["image_index"] = re.ImageIndex
		}
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
