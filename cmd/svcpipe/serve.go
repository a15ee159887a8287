package main

import (
	"os"

	"github.com/spf13/cobra"

	"svcpipe/internal/generator"
	"svcpipe/internal/server"
)

var (
	serveAddr   string
	serveLedger string
	serveKeyDir string
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pipeline generation over HTTP",
	Long: `Starts the HTTP API:

  GET  /healthz        liveness
  GET  /services       all services
  POST /pipelines      {"services":[...]} or {"changedFiles":[...]} -> YAML document
  GET  /ledger/verify  verify the ledger given with --ledger`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :$PORT or :8080)")
	serveCmd.Flags().StringVar(&serveLedger, "ledger", "", "Ledger file to expose for verification")
	serveCmd.Flags().StringVar(&serveKeyDir, "key-dir", ".svcpipe/keys", "Directory holding the trusted ledger public key")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	var lc *server.LedgerConfig
	if serveLedger != "" {
		trusted, err := loadTrustedKey(serveKeyDir)
		if err != nil {
			return err
		}
		lc = &server.LedgerConfig{Path: serveLedger, Trusted: trusted}
	}

	addr := serveAddr
	if addr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		addr = ":" + port
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	gen := generator.New(repoDir, settings, logger.Named("generator"))
	return server.New(gen, lc, logger.Named("server")).ListenAndServe(ctx, addr)
}
