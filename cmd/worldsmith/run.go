package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zhanna110/worldsmith-v3/internal/engine"
	"github.com/Zhanna110/worldsmith-v3/internal/node"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
)

var (
	runSource   string
	runEntities []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the generation workflow",
	Long: `Run drives the writer team over the entity queue until it drains or
the daily token budget trips. Seed the queue with --entity flags, a source
material file via --source, or both; with neither, the run works the registry
backlog accumulated by earlier runs.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runSource, "source", "s", "", "source material file for the architect to analyze")
	runCmd.Flags().StringArrayVarP(&runEntities, "entity", "e", nil, "entity to seed the queue with (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, true, true)
	if err != nil {
		return err
	}
	defer a.Close()

	source := ""
	if runSource != "" {
		data, err := os.ReadFile(runSource)
		if err != nil {
			return fmt.Errorf("failed to read source material: %w", err)
		}
		source = string(data)
	}

	threshold := cfg.Retrieval.Threshold
	contextCount := cfg.Retrieval.ContextCount

	registry := node.NewRegistry()
	registry.Register(node.NewArchitect(a.provider, a.registry, source, logger))
	registry.Register(node.NewDispatcher(a.registry, logger))
	registry.Register(node.NewOutliner(a.provider, a.retriever, threshold, contextCount, logger))
	registry.Register(node.NewCreator(a.provider, a.retriever, threshold, contextCount, logger))
	registry.Register(node.NewEditor(logger))
	registry.Register(node.NewScanner(a.provider, a.vault, a.ingester, a.registry, logger))

	eng := engine.New(registry, router.New(), a.guard,
		engine.WithLogger(logger),
		engine.WithMaxRetries(cfg.Engine.MaxRetries),
		engine.WithRetryBackoff(cfg.Engine.RetryBackoff),
	)

	go func() {
		for ev := range eng.Events() {
			logger.Info("entity finalized", "entity", ev.Entity, "path", ev.Path)
		}
	}()

	result, err := eng.Run(ctx, runEntities)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", result.Reason)
	if result.StoppedOn != "" {
		fmt.Printf("  stopped on:         %s\n", result.StoppedOn)
	}
	fmt.Printf("  entities completed: %d\n", result.EntitiesCompleted)
	if result.ForcedApprovals > 0 {
		fmt.Printf("  forced approvals:   %d (marked needs-review)\n", result.ForcedApprovals)
	}
	if len(result.FailedEntities) > 0 {
		fmt.Printf("  failed entities:    %v\n", result.FailedEntities)
	}
	fmt.Printf("  tokens consumed:    %d\n", result.TokensConsumed)
	fmt.Printf("  duration:           %s\n", result.Duration.Round(time.Millisecond))

	if result.Reason == engine.ReasonAbortedBudget {
		return fmt.Errorf("daily token budget exhausted (%d/%d)", a.guard.Total(), a.guard.Ceiling())
	}
	return nil
}
