package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facereg/facereg/internal/config"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Verify an image against the registry",
	Long: `Verify checks which registered person, if any, the most prominent
face in the image belongs to. Prints the match and its similarity, or
"no match". Exits with status 2 when nobody matched.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Minimum similarity for a match (overrides SIMILARITY_THRESHOLD)")
	verifyCmd.Flags().String("save-best", "", "Write the matched person's reference image to this file")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		cfg.Recognition.SimilarityThreshold = t
	}

	images, err := readImages(args)
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Verify(context.Background(), images[0])
	if err != nil {
		return err
	}

	if !res.Matched() {
		fmt.Println("no match")
		os.Exit(2)
	}

	fmt.Printf("Matched %s (similarity %.4f)\n", res.PersonID, res.Similarity)

	if out, _ := cmd.Flags().GetString("save-best"); out != "" && len(res.BestImage) > 0 {
		if err := os.WriteFile(out, res.BestImage, 0o600); err != nil {
			return fmt.Errorf("writing reference image: %w", err)
		}
		fmt.Printf("Reference image written to %s\n", out)
	}
	return nil
}
