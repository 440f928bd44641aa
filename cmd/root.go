package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facereg",
	Short: "A face recognition registry with pluggable vector storage",
	Long: `Facereg registers people by their face embeddings and verifies
unknown images against the registry. Embeddings come from an external
detection sidecar; they are stored either in an in-process HNSW index
or in a relational database.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
