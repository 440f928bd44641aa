package cmd

import (
	"fmt"
	"os"

	"github.com/facereg/facereg/internal/config"
	"github.com/facereg/facereg/internal/detect"
	"github.com/facereg/facereg/internal/recognition"
	"github.com/facereg/facereg/internal/registry"
	"github.com/facereg/facereg/internal/registry/hnswstore"
	"github.com/facereg/facereg/internal/registry/sqlstore"
)

// buildService assembles the recognition service from configuration: the
// detector client, the selected registry backend, and the pipeline. The
// returned cleanup releases backend resources.
func buildService(cfg *config.Config) (*recognition.Service, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		reg     registry.Registry
		cleanup = func() {}
	)
	switch cfg.Registry.Backend {
	case "hnsw":
		store, err := hnswstore.New(cfg.Registry.Collection, cfg.Registry.IndexPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening hnsw collection: %w", err)
		}
		reg = store
	case "sql":
		store, err := sqlstore.Open(cfg.Registry.Driver, cfg.Registry.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sql registry: %w", err)
		}
		reg = store
		cleanup = func() { _ = store.Close() }
	}

	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Model)
	pipeline := recognition.NewPipeline(detector)
	svc := recognition.NewService(pipeline, reg, cfg.Recognition.SimilarityThreshold)

	return svc, cleanup, nil
}

// readImages loads image files from disk for register/update/verify verbs.
func readImages(paths []string) ([][]byte, error) {
	images := make([][]byte, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading image %s: %w", p, err)
		}
		images[i] = data
	}
	return images, nil
}
