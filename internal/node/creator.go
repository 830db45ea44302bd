package node

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/retrieval"
	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
)

const creatorSystem = `You are the lead writer of an in-world encyclopedia.
Write the full entry in markdown following the outline exactly. Stay in-world:
no meta commentary, no addressing the reader, no hedging. Weave in the
established lore without contradicting it. Output the entry only.`

// Creator generates the draft for the current entity. When critique notes are
// pending, the request is framed as a correction of those specific issues
// rather than a fresh draft.
type Creator struct {
	provider  llm.Provider
	retriever *retrieval.Service
	threshold float64
	context   int
	logger    *slog.Logger
}

// NewCreator creates the creator node.
func NewCreator(provider llm.Provider, retriever *retrieval.Service, threshold float64, contextCount int, logger *slog.Logger) *Creator {
	if logger == nil {
		logger = slog.Default()
	}
	if contextCount <= 0 {
		contextCount = 4
	}
	return &Creator{
		provider:  provider,
		retriever: retriever,
		threshold: threshold,
		context:   contextCount,
		logger:    logger,
	}
}

// Name returns the phase this node serves.
func (c *Creator) Name() router.Phase {
	return router.PhaseDraft
}

// Execute generates or revises the draft. Critique notes are consumed as
// correction instructions but left in state; the editor clears them after
// evaluating the new draft.
func (c *Creator) Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error) {
	revising := s.CritiqueNotes != ""

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Entity: %s\n", s.CurrentEntity)
	fmt.Fprintf(&prompt, "Target length: about %d words (%s).\n",
		s.Density.TargetWords, s.Density.Description)
	fmt.Fprintf(&prompt, "\nOutline:\n%s\n", s.Outline)

	if lore := c.gatherLore(ctx, s.CurrentEntity); lore != "" {
		fmt.Fprintf(&prompt, "\nEstablished lore:\n%s\n", lore)
	}

	if revising {
		fmt.Fprintf(&prompt, "\nYour previous draft was rejected. Fix these specific issues:\n%s\n", s.CritiqueNotes)
		fmt.Fprintf(&prompt, "\nPrevious draft:\n%s\n", s.DraftText)
		prompt.WriteString("\nRewrite the entry correcting every noted issue.")
	} else {
		prompt.WriteString("\nWrite the entry.")
	}

	resp, err := c.provider.Complete(ctx, llm.Request{
		System:      creatorSystem,
		Prompt:      prompt.String(),
		Temperature: 0.8,
	})
	if err != nil {
		return state.Partial{}, 0, err
	}

	c.logger.Info("draft produced",
		"entity", s.CurrentEntity,
		"revision", revising,
		"draft_words", countWords(resp.Text))

	return state.Partial{
		DraftText: state.StringPtr(strings.TrimSpace(resp.Text)),
	}, resp.Usage.TotalTokens, nil
}

func (c *Creator) gatherLore(ctx context.Context, entity string) string {
	if c.retriever == nil {
		return ""
	}
	matches, err := c.retriever.SearchText(ctx, entity, c.threshold, c.context, nil)
	if err != nil {
		c.logger.Warn("lore retrieval failed, drafting without context",
			"entity", entity, "error", err)
		return ""
	}
	return formatLore(matches)
}

// countWords counts whitespace-separated tokens.
func countWords(text string) int {
	return len(strings.Fields(text))
}
