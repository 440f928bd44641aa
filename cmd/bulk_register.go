package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facereg/facereg/internal/config"
	"github.com/facereg/facereg/internal/recognition"
)

var bulkRegisterCmd = &cobra.Command{
	Use:   "bulk-register <directory>",
	Short: "Register many people from a directory tree",
	Long: `Bulk-register reads a directory where every subdirectory is one
person: the subdirectory name is the person ID and its image files are
the registration batch. People already in the registry are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBulkRegister,
}

func init() {
	rootCmd.AddCommand(bulkRegisterCmd)

	bulkRegisterCmd.Flags().Int("concurrency", 4, "Number of people registered in parallel")
}

// collectBatches maps each subdirectory to its sorted image files.
func collectBatches(root string, maxImages int) (map[string][]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	batches := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}

		var images []string
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(f.Name())) {
			case ".jpg", ".jpeg", ".png", ".bmp":
				images = append(images, filepath.Join(dir, f.Name()))
			}
		}
		if len(images) == 0 {
			continue
		}

		sort.Strings(images)
		if maxImages > 0 && len(images) > maxImages {
			images = images[:maxImages]
		}
		batches[entry.Name()] = images
	}
	return batches, nil
}

func runBulkRegister(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	batches, err := collectBatches(args[0], cfg.Recognition.MaxImagesPerRequest)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return fmt.Errorf("no person directories with images found in %s", args[0])
	}

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("People to register: %d\n\n", len(batches))

	bar := progressbar.NewOptions(len(batches),
		progressbar.OptionSetDescription("Registering"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("people"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	ctx := context.Background()

	var successCount, skipCount, errorCount int
	var errs []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for personID, paths := range batches {
		wg.Add(1)
		go func(personID string, paths []string) {
			defer wg.Done()
			defer bar.Add(1)
			sem <- struct{}{}
			defer func() { <-sem }()

			images, err := readImages(paths)
			if err != nil {
				mu.Lock()
				errorCount++
				errs = append(errs, fmt.Sprintf("%s: %v", personID, err))
				mu.Unlock()
				return
			}

			_, err = svc.Register(ctx, personID, images)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successCount++
			case recognition.IsKind(err, recognition.KindPersonExists):
				skipCount++
			default:
				errorCount++
				errs = append(errs, fmt.Sprintf("%s: %v", personID, err))
			}
		}(personID, paths)
	}

	wg.Wait()
	fmt.Println()

	fmt.Printf("Registered: %d, skipped (already registered): %d, failed: %d\n",
		successCount, skipCount, errorCount)
	for _, e := range errs {
		fmt.Printf("  %s\n", e)
	}

	if errorCount > 0 {
		return fmt.Errorf("%d registrations failed", errorCount)
	}
	return nil
}
