package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// EmbeddingDim is the fixed dimensionality of face embeddings. Every model
// profile in models.yaml must produce vectors of this size.
const EmbeddingDim = 512

type Config struct {
	Recognition RecognitionConfig
	Detector    DetectorConfig
	Registry    RegistryConfig
	Web         WebConfig
	Models      ModelsConfig
}

type RecognitionConfig struct {
	SimilarityThreshold float64 // minimum cosine similarity for a verify match (default 0.6)
	MaxImagesPerRequest int     // maximum images accepted per register/update call (default 10)
}

type DetectorConfig struct {
	URL   string // base URL of the face detection sidecar (e.g., http://localhost:8500)
	Model string // detector model profile name, must exist in models.yaml (default buffalo_l)
}

type RegistryConfig struct {
	Backend    string // "hnsw" (in-process ANN index) or "sql" (relational full scan)
	Driver     string // sql backend: "mysql" or "sqlite"
	DSN        string // sql backend: driver-specific data source name
	Collection string // hnsw backend: collection name (default "faces")
	IndexPath  string // hnsw backend: optional path to persist the index between runs
}

type WebConfig struct {
	Host string
	Port int
}

type ModelsConfig struct {
	Models map[string]ModelProfile `yaml:"models"`
}

// ModelProfile describes a supported detector model.
type ModelProfile struct {
	Dim     int `yaml:"dim"`      // embedding dimensionality
	DetSize int `yaml:"det_size"` // detector input size (square, pixels)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable, falling back to a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// Embedded file, so this can only fail on a build-time mistake.
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Recognition: RecognitionConfig{
			SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.6),
			MaxImagesPerRequest: envInt("MAX_IMAGES_PER_REQUEST", 10),
		},
		Detector: DetectorConfig{
			URL:   os.Getenv("DETECTOR_URL"),
			Model: envString("DETECTOR_MODEL", "buffalo_l"),
		},
		Registry: RegistryConfig{
			Backend:    envString("REGISTRY_BACKEND", "hnsw"),
			Driver:     envString("DATABASE_DRIVER", "mysql"),
			DSN:        os.Getenv("DATABASE_DSN"),
			Collection: envString("HNSW_COLLECTION", "faces"),
			IndexPath:  os.Getenv("HNSW_INDEX_PATH"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Models: models,
	}
}

// ModelProfile returns the profile for the configured detector model.
func (c *Config) ModelProfile() (ModelProfile, error) {
	profile, ok := c.Models.Models[c.Detector.Model]
	if !ok {
		return ModelProfile{}, fmt.Errorf("unknown detector model %q", c.Detector.Model)
	}
	return profile, nil
}

// Validate checks the parts of the configuration that would otherwise fail
// deep inside a request: the registry backend selection and the detector
// model profile.
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case "hnsw":
	case "sql":
		if c.Registry.Driver != "mysql" && c.Registry.Driver != "sqlite" {
			return fmt.Errorf("unsupported DATABASE_DRIVER %q (want mysql or sqlite)", c.Registry.Driver)
		}
		if c.Registry.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the sql registry backend")
		}
	default:
		return fmt.Errorf("unsupported REGISTRY_BACKEND %q (want hnsw or sql)", c.Registry.Backend)
	}

	profile, err := c.ModelProfile()
	if err != nil {
		return err
	}
	if profile.Dim != EmbeddingDim {
		return fmt.Errorf("detector model %q produces %d-dim embeddings, registry requires %d",
			c.Detector.Model, profile.Dim, EmbeddingDim)
	}
	return nil
}
