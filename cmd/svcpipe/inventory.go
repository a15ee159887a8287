package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"svcpipe/internal/inventory"
)

var (
	unknownRole      string
	terraformTimeout time.Duration
	k3sOutput        string
	mergedOutput     string
)

// inventoryCmd regenerates the Ansible inventories
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Generate Ansible inventories from Terraform outputs",
	Long: `Reads the ansible_info output of every configured Terraform project and
writes one inventory per project, a k3s inventory split into masters and
workers, and a merged inventory of all hosts.

State backend credentials are read per project from <PREFIX>ADDRESS,
<PREFIX>USERNAME, <PREFIX>PASSWORD and friends, and handed to terraform only.`,
	Args: cobra.NoArgs,
	RunE: runInventory,
}

func init() {
	inventoryCmd.Flags().StringVar(&unknownRole, "unknown-role", "", "Policy for k3s nodes without a known role: worker, master or skip")
	inventoryCmd.Flags().DurationVar(&terraformTimeout, "timeout", 2*time.Minute, "Timeout per terraform invocation")
	inventoryCmd.Flags().StringVar(&k3sOutput, "k3s-output", inventory.DefaultK3sOutput, "k3s inventory path, relative to the repository")
	inventoryCmd.Flags().StringVar(&mergedOutput, "merged-output", inventory.DefaultMergedOutput, "Merged inventory path, relative to the repository")
}

func runInventory(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if unknownRole != "" {
		settings.UnknownRole = unknownRole
	}
	policy, err := settings.UnknownPolicy()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	source := inventory.NewTerraformSource(terraformTimeout, nil)
	res := inventory.NewCollector(source, policy, os.Getenv, logger.Named("inventory")).
		Collect(ctx, repoDir, settings.Projects)

	written, err := inventory.Write(repoDir, res, inventory.Outputs{K3s: k3sOutput, Merged: mergedOutput}, logger)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	logger.Info("Inventory generation finished",
		zap.Int("hosts", len(res.All)),
		zap.Int("files", len(written)))
	return nil
}
