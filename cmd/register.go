package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facereg/facereg/internal/config"
)

var registerCmd = &cobra.Command{
	Use:   "register <person-id> <image>...",
	Short: "Register a person from one or more face images",
	Long: `Register a new person in the face registry.
Every image must contain exactly one face of acceptable quality. The
highest-quality image becomes the person's stored reference image.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
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

	res, err := svc.Register(context.Background(), personID, images)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s\n", personID)
	fmt.Printf("  Embeddings stored: %d\n", res.EmbeddingsStored)
	fmt.Printf("  Average quality:   %.3f\n", res.AverageQuality)
	return nil
}
