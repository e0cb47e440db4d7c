package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"terrasync/internal/jwttoken"
	"terrasync/internal/platform/config"
	id "terrasync/pkg/domain"
)

// newTokenCmd mints a collector device token against the configured signing
// key. Development convenience; production tokens come from the identity side.
func newTokenCmd() *cobra.Command {
	var (
		collector string
		device    string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a collector device token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			collectorID, err := id.ParseCollectorID(collector)
			if err != nil {
				return fmt.Errorf("parse collector id: %w", err)
			}
			cfg := config.FromEnv()
			svc := jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
			token, err := svc.GenerateCollectorToken(collectorID, device, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&collector, "collector", "", "collector UUID (required)")
	cmd.Flags().StringVar(&device, "device", "dev-device", "device identifier")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("collector")
	return cmd
}
