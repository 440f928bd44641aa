package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/facereg/facereg/internal/config"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the registry backend",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !svc.Healthy(ctx) {
		fmt.Println("registry: unavailable")
		os.Exit(1)
	}
	fmt.Println("registry: ok")
	return nil
}
