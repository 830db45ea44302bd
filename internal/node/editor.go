package node

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Zhanna110/worldsmith-v3/internal/router"
	"github.com/Zhanna110/worldsmith-v3/internal/state"
)

// minWordRatio is the fraction of the density target a draft must reach.
const minWordRatio = 0.8

// outOfWorldPhrases break the in-world voice and always trigger a revision.
var outOfWorldPhrases = []string{
	"in this article",
	"in conclusion",
	"as an ai",
	"i cannot",
	"as a language model",
	"stay tuned",
	"in this entry we",
}

// placeholderMarkers indicate an unfinished draft.
var placeholderMarkers = []string{
	"tbd",
	"todo:",
	"[placeholder",
	"lorem ipsum",
	"<insert",
}

// Editor evaluates the draft deterministically: structural checks, length
// against the density target, and voice heuristics. It is the only node that
// sets Approved, and it increments CritiqueCount only on a REVISE verdict.
type Editor struct {
	logger *slog.Logger
}

// NewEditor creates the editor node.
func NewEditor(logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{logger: logger}
}

// Name returns the phase this node serves.
func (e *Editor) Name() router.Phase {
	return router.PhaseCritique
}

// Execute reviews the draft and emits the verdict via the Approved and
// CritiqueNotes fields.
func (e *Editor) Execute(ctx context.Context, s *state.StateRecord) (state.Partial, int, error) {
	issues := e.review(s)

	if len(issues) == 0 {
		e.logger.Info("draft approved",
			"entity", s.CurrentEntity,
			"revisions_used", s.CritiqueCount)
		return state.Partial{
			Approved:      state.BoolPtr(true),
			CritiqueNotes: state.StringPtr(""),
		}, 0, nil
	}

	notes := "- " + strings.Join(issues, "\n- ")
	count := s.CritiqueCount + 1

	e.logger.Info("draft rejected",
		"entity", s.CurrentEntity,
		"critique_count", count,
		"issues", len(issues))

	return state.Partial{
		Approved:      state.BoolPtr(false),
		CritiqueNotes: state.StringPtr(notes),
		CritiqueCount: state.IntPtr(count),
	}, 0, nil
}

// review runs the editorial checks and returns the list of issues found.
func (e *Editor) review(s *state.StateRecord) []string {
	var issues []string
	draft := s.DraftText

	if strings.TrimSpace(draft) == "" {
		return []string{"draft is empty"}
	}

	if !strings.HasPrefix(strings.TrimSpace(draft), "# ") {
		issues = append(issues, "missing top-level heading naming the entity")
	}
	if !strings.Contains(draft, "\n## ") {
		issues = append(issues, "no section headings; follow the outline structure")
	}

	words := countWords(draft)
	minWords := int(float64(s.Density.TargetWords) * minWordRatio)
	if s.Density.TargetWords > 0 && words < minWords {
		issues = append(issues, fmt.Sprintf(
			"too short: %d words, need at least %d of the %d-word target",
			words, minWords, s.Density.TargetWords))
	}

	lower := strings.ToLower(draft)
	for _, phrase := range outOfWorldPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, fmt.Sprintf("out-of-world voice: remove %q", phrase))
		}
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			issues = append(issues, fmt.Sprintf("leftover placeholder: resolve %q", marker))
		}
	}

	if s.CurrentEntity != "" && !strings.Contains(lower, strings.ToLower(s.CurrentEntity)) {
		issues = append(issues, fmt.Sprintf("entry never names its subject %q", s.CurrentEntity))
	}

	return issues
}
