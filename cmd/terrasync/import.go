package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"terrasync/internal/container"
	"terrasync/internal/platform/config"
	"terrasync/internal/platform/logger"
	id "terrasync/pkg/domain"
)

// packageEnvelope mirrors the sync upload body and the spool file format:
// the manifest plus base64 payload bytes.
type packageEnvelope struct {
	Manifest *container.Manifest `json:"manifest"`
	Payload  []byte              `json:"payload"`
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <package-file>",
		Short: "Run one package file through the import pipeline and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importFile(cmd.Context(), args[0])
		},
	}
}

func importFile(ctx context.Context, path string) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	log := logger.New()

	st, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	svcs, err := buildServices(cfg, rules, st, nil, nil, log)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read package file: %w", err)
	}
	var env packageEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse package envelope: %w", err)
	}
	if env.Manifest == nil || len(env.Payload) == 0 {
		return fmt.Errorf("package envelope missing manifest or payload")
	}
	collectorID, err := id.ParseCollectorID(env.Manifest.CollectorID)
	if err != nil {
		return fmt.Errorf("manifest collector id: %w", err)
	}

	outcome, err := svcs.importer.Accept(ctx, env.Manifest, env.Payload, collectorID)
	if err != nil {
		return err
	}

	fmt.Printf("package:     %s\n", outcome.PackageID)
	fmt.Printf("status:      %s\n", outcome.Status)
	if outcome.Duplicate {
		fmt.Println("duplicate:   container already registered, nothing imported")
	}
	if outcome.Quarantined {
		fmt.Printf("quarantined: %s\n", outcome.Message)
	}
	return nil
}
