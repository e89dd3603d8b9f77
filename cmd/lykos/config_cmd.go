// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/jesopo/lykos/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			if _, err := config.NewLoader(file).Load(); err != nil {
				return fmt.Errorf("configuration error in %s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", file)
			return nil
		},
	}
	validate.Flags().StringVarP(&file, "file", "f", "", "path to YAML configuration file")

	var dumpFile, format, output string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration: defaults, file and environment merged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := config.NewLoader(dumpFile).Load()
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(&buf)
				enc.SetIndent(2)
				if err := enc.Encode(snap.Config); err != nil {
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
			case "json":
				enc := json.NewEncoder(&buf)
				enc.SetIndent("", "  ")
				if err := enc.Encode(snap.Config); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			return writeAtomic(output, buf.Bytes())
		},
	}
	dump.Flags().StringVarP(&dumpFile, "file", "f", "", "path to YAML configuration file")
	dump.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	dump.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	cmd.AddCommand(validate, dump)
	return cmd
}

// writeAtomic replaces path so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
