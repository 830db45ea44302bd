package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lore store, registry, and budget status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sections, err := a.store.SectionCount(ctx)
	if err != nil {
		return err
	}

	pending := a.registry.Pending()

	fmt.Printf("Lore store:   %d sections (%s)\n", sections, cfg.Retrieval.Backend)
	fmt.Printf("Registry:     %d tracked, %d pending\n", a.registry.Len(), len(pending))
	fmt.Printf("Budget:       %d / %d tokens used today", a.guard.Total(), a.guard.Ceiling())
	if a.guard.Tripped() {
		fmt.Printf("  [TRIPPED]")
	}
	fmt.Println()

	if len(pending) > 0 {
		fmt.Println("\nNext up:")
		limit := len(pending)
		if limit > 10 {
			limit = 10
		}
		for _, e := range pending[:limit] {
			fmt.Printf("  %-30s tier %d  score %d\n", e.Name, e.Tier, e.Score())
		}
	}

	return nil
}
