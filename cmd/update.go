package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facereg/facereg/internal/config"
)

var updateCmd = &cobra.Command{
	Use:   "update <person-id> <image>...",
	Short: "Replace a person's stored embeddings",
	Long: `Update replaces all stored embeddings and the reference image for
a person with ones extracted from the given images. Updating a person
that does not exist registers them.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().Bool("strict", false, "Fail when the person is not registered yet")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	personID := args[0]
	if len(args)-1 > cfg.Recognition.MaxImagesPerRequest {
		return fmt.Errorf("too many images: %d exceeds limit of %d", len(args)-1, cfg.Recognition.MaxImagesPerRequest)
	}

	images, err := readImages(args[1:])
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()

	if mustGetBool(cmd, "strict") {
		exists, err := svc.Exists(ctx, personID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("person %q is not registered", personID)
		}
	}

	res, err := svc.Update(ctx, personID, images)
	if err != nil {
		return err
	}

	fmt.Printf("Updated %s\n", personID)
	fmt.Printf("  Embeddings stored: %d\n", res.EmbeddingsStored)
	fmt.Printf("  Average quality:   %.3f\n", res.AverageQuality)
	return nil
}
