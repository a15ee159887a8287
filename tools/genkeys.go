//go:build ignore

// genkeys creates the ed25519 key pair that signs ledger entries.
//
//	go run tools/genkeys.go [dir]
package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"svcpipe/internal/security"
)

func main() {
	cmd := &cobra.Command{
		Use:   "genkeys [dir]",
		Short: "Generate or show the ledger signing keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ".svcpipe/keys"
			if len(args) == 1 {
				dir = args[0]
			}
			pub, _, created, err := security.EnsureKeyPair(dir)
			if err != nil {
				return err
			}
			state := "existing"
			if created {
				state = "new"
			}
			fmt.Printf("# ======= Ed25519 ledger key (%s) =======\n\n", state)
			fmt.Println("PRIVATE_KEY_FILE:", filepath.Join(dir, security.PrivateKeyFile))
			fmt.Println("PUBLIC_KEY_FILE: ", filepath.Join(dir, security.PublicKeyFile))
			fmt.Println()
			fmt.Println("PUBLIC_KEY_BASE64:")
			fmt.Println(base64.StdEncoding.EncodeToString(pub))
			fmt.Println()
			fmt.Println("# ========================================")
			return nil
		},
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "keygen error: %v\n", err)
		os.Exit(2)
	}
}
