package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"svcpipe/internal/config"
	"svcpipe/internal/generator"
	"svcpipe/internal/ledger"
	"svcpipe/internal/security"
	"svcpipe/internal/storage"
)

var (
	outputPath   string
	servicesFile string
	ledgerPath   string
	keyDir       string
)

// detectCmd prints the changed services
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List the services changed in the current CI context",
	Long: `Resolves the comparison range from the CI environment and prints the
affected services one per line. With --services-file the list is written to
that file instead; nothing is written when no service changed.`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

// generateCmd writes the child pipeline document
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the child pipeline document",
	Long: `Runs change detection and writes the generated pipeline document.
Use --output - to print the document to stdout.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	detectCmd.Flags().StringVar(&servicesFile, "services-file", "", "Write the service list to this file")

	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Document path relative to the working directory, - for stdout (default: output_file setting, relative to --repo)")
	generateCmd.Flags().StringVar(&servicesFile, "services-file", "", "Also write the service list to this file")
	generateCmd.Flags().StringVar(&ledgerPath, "ledger", "", "Append a signed entry to this ledger file")
	generateCmd.Flags().StringVar(&keyDir, "key-dir", ".svcpipe/keys", "Ledger signing key directory")
}

func runDetect(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	gen := generator.New(repoDir, settings, logger)
	d, err := gen.Detect(ctx, config.SignalsFromEnv(getenv))
	if err != nil {
		return err
	}

	if servicesFile == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), storage.FormatLines(d.Services))
		return err
	}
	_, err = gen.WriteServices(servicesFile, d.Services)
	return err
}

func runGenerate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	gen := generator.New(repoDir, settings, logger)
	out, err := gen.Generate(ctx, config.SignalsFromEnv(getenv))
	if err != nil {
		return err
	}

	switch outputPath {
	case "-":
		if _, err := cmd.OutOrStdout().Write(out.Document); err != nil {
			return err
		}
	case "":
		if err := gen.WriteDocument(repoPath(settings.OutputFile), out); err != nil {
			return err
		}
	default:
		if err := gen.WriteDocument(outputPath, out); err != nil {
			return err
		}
	}

	if servicesFile != "" {
		if _, err := gen.WriteServices(servicesFile, out.Services); err != nil {
			return err
		}
	}

	if ledgerPath == "" {
		return nil
	}
	l, err := ledger.Open(ledgerPath)
	if err != nil {
		return err
	}
	pub, priv, created, err := security.EnsureKeyPair(keyDir)
	if err != nil {
		return fmt.Errorf("ledger keys: %w", err)
	}
	if created {
		logger.Info("Generated new ledger keys", zap.String("dir", keyDir))
	}
	_, err = gen.Record(l, priv, pub, out)
	return err
}
