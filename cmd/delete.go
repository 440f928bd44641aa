package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facereg/facereg/internal/config"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <person-id>",
	Short: "Remove a person and all their embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := svc.Delete(context.Background(), args[0])
	if err != nil {
		return err
	}

	if removed {
		fmt.Printf("Deleted %s\n", args[0])
	} else {
		fmt.Printf("Person %s was not registered\n", args[0])
	}
	return nil
}
