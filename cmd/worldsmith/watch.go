package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Zhanna110/worldsmith-v3/internal/vault"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the drop directory and sync files into the vault",
	Long: `Watch monitors the configured drop directory for hand-written
markdown files, stamps them with frontmatter, and moves them into the vault's
sync directory. Runs until interrupted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false, false)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := vault.NewWatcher(a.vault, cfg.Vault.DropDir, cfg.Vault.SyncDir,
		vault.WithWatcherLogger(logger))
	if err != nil {
		return err
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
