package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"svcpipe/internal/ledger"
	"svcpipe/internal/security"
	"svcpipe/pkg/utils"
)

var (
	ledgerFile   string
	ledgerJSON   bool
	ledgerKeyDir string
)

// ledgerCmd groups the ledger subcommands
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or verify the generation ledger",
}

var ledgerInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List ledger entries",
	Args:  cobra.NoArgs,
	RunE:  runLedgerInspect,
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hashes, links and signatures of every entry",
	Long: `Checks every entry of the ledger and that each one was signed with the
public key in --key-dir.`,
	Args:  cobra.NoArgs,
	RunE:  runLedgerVerify,
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&ledgerFile, "ledger", "ledger.jsonl", "Ledger file")
	ledgerInspectCmd.Flags().BoolVar(&ledgerJSON, "json", false, "Print entries as JSON lines")
	ledgerVerifyCmd.Flags().StringVar(&ledgerKeyDir, "key-dir", ".svcpipe/keys", "Directory holding the trusted "+security.PublicKeyFile)
	ledgerCmd.AddCommand(ledgerInspectCmd, ledgerVerifyCmd)
}

func runLedgerInspect(cmd *cobra.Command, args []string) error {
	l, err := ledger.Open(ledgerFile)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	enc := json.NewEncoder(w)
	for _, e := range l.Entries() {
		if ledgerJSON {
			if err := enc.Encode(e); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Index, e.Timestamp, utils.ShortHash(e.Hash), e.RunID, e.ChangeRef, strings.Join(e.Services, ","))
	}
	return nil
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	l, err := ledger.Open(ledgerFile)
	if err != nil {
		return err
	}
	trusted, err := loadTrustedKey(ledgerKeyDir)
	if err != nil {
		return err
	}
	if err := l.VerifyChain(trusted); err != nil {
		return fmt.Errorf("ledger %s verification failed: %w", l.Path(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger %s verification ok (%d entries)\n", l.Path(), l.Len())
	return nil
}

func loadTrustedKey(dir string) (ed25519.PublicKey, error) {
	pub, err := security.LoadPublicKey(filepath.Join(dir, security.PublicKeyFile))
	if err != nil {
		return nil, fmt.Errorf("trusted ledger key: %w", err)
	}
	return pub, nil
}
