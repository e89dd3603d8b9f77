// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jesopo/lykos/internal/daemon"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/version"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot, reading chat lines on stdin and writing them to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := daemon.Build(ctx, daemon.Options{
				ConfigPath: configPath,
				Version:    version.Version,
				In:         os.Stdin,
				Out:        os.Stdout,
				LogOutput:  os.Stderr,
			})
			if err != nil {
				return err
			}
			logger := log.WithComponent("daemon")
			defer func() {
				if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Warn().Err(err).Msg("close failed")
				}
			}()

			logger.Info().
				Str("event", "daemon.starting").
				Str("version", version.Version).
				Str("config_path", configPath).
				Msg("starting lykos")
			return rt.App.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("LYKOS_CONFIG"), "path to the YAML configuration file")
	return cmd
}
