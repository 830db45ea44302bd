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

const outlinerSystem = `You are a story-bible editor planning an encyclopedia
entry. Produce a markdown outline: a top-level heading with the entity name,
then section headings with one-line notes on what each must cover. Respect the
established lore provided; never contradict it. Output the outline only.`

// Outliner produces a structural blueprint for the current entity, sized by
// its density class and grounded in retrieved lore.
type Outliner struct {
	provider  llm.Provider
	retriever *retrieval.Service
	threshold float64
	context   int
	logger    *slog.Logger
}

// NewOutliner creates the outliner node. threshold and contextCount control
// the lore retrieval performed before outlining.
func NewOutliner(provider llm.Provider, retriever *retrieval.Service, threshold float64, contextCount int, logger *slog.Logger) *Outliner {
	if logger == nil {
		logger = slog.Default()
	}
	if contextCount <= 0 {
		contextCount = 4
	}
	return &Outliner{
		provider:  provider,
		retriever: retriever,
		threshold: threshold,
		context:   contextCount,
		logger:    logger,
	}
}

// Name returns the phase this node serves.
func (o *Outliner) Name() router.Phase {
	return router.PhaseOutline
}

// Execute builds the outline for the current entity.
func (o *Outliner) Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error) {
	lore := o.gatherLore(ctx, s.CurrentEntity)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Entity: %s\n", s.CurrentEntity)
	if s.Category != "" {
		fmt.Fprintf(&prompt, "Category: %s\n", s.Category)
	}
	fmt.Fprintf(&prompt, "Density: %s — target %d words. %s\n",
		s.Density.Label, s.Density.TargetWords, s.Density.Description)
	if lore != "" {
		fmt.Fprintf(&prompt, "\nEstablished lore:\n%s\n", lore)
	}
	prompt.WriteString("\nProduce the outline.")

	resp, err := o.provider.Complete(ctx, llm.Request{
		System:      outlinerSystem,
		Prompt:      prompt.String(),
		Temperature: 0.5,
	})
	if err != nil {
		return state.Partial{}, 0, err
	}

	o.logger.Debug("outline produced",
		"entity", s.CurrentEntity,
		"outline_bytes", len(resp.Text))

	return state.Partial{
		Outline: state.StringPtr(strings.TrimSpace(resp.Text)),
	}, resp.Usage.TotalTokens, nil
}

// gatherLore pulls the most relevant established sections for the entity.
// Retrieval failures degrade to an empty context rather than failing the node;
// an outline without lore beats no outline.
func (o *Outliner) gatherLore(ctx context.Context, entity string) string {
	if o.retriever == nil {
		return ""
	}
	matches, err := o.retriever.SearchText(ctx, entity, o.threshold, o.context, nil)
	if err != nil {
		o.logger.Warn("lore retrieval failed, outlining without context",
			"entity", entity, "error", err)
		return ""
	}
	return formatLore(matches)
}

// formatLore renders retrieval matches as a context block for prompts.
func formatLore(matches []retrieval.SectionMatch) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range matches {
		heading := m.Section.Heading
		if heading == "" {
			heading = m.Section.SourceFile
		}
		fmt.Fprintf(&b, "### %s (from %s)\n%s\n\n", heading, m.Section.SourceFile, m.Section.Text)
	}
	return strings.TrimSpace(b.String())
}
