package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured API key with one upstream call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := a.client.ValidateAPIKey(ctx); err != nil {
				a.logger.Debug("api key check failed", zap.String("category", string(client.CategorizeError(err))))
				return fmt.Errorf("api key check: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key OK")
			return nil
		},
	}
}
