// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jesopo/lykos/internal/persistence/sqlite"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Maintain the access-control database",
	}

	var path, mode string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Run an SQLite integrity check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "quick" && mode != "full" {
				return fmt.Errorf("unknown mode %q (want quick or full)", mode)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("database %s: %w", path, err)
			}
			problems, err := sqlite.VerifyIntegrity(path, mode)
			if err != nil {
				return err
			}
			if len(problems) > 0 {
				return fmt.Errorf("%s is corrupt:\n  %s", path, strings.Join(problems, "\n  "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s check)\n", path, mode)
			return nil
		},
	}
	verify.Flags().StringVarP(&path, "path", "p", "lykos.db", "database path")
	verify.Flags().StringVar(&mode, "mode", "quick", "quick or full")

	cmd.AddCommand(verify)
	return cmd
}
