package retrieval

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhanna110/worldsmith-v3/internal/embedder"
	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// Service implements hybrid retrieval: similarity ranking over chunks combined
// with metadata filtering on their owning sections, returning deduplicated
// full parent sections.
type Service struct {
	store    Store
	embedder embedder.Embedder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for retrieval spans.
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a retrieval service over the given store. The embedder
// may be nil if only Search (pre-embedded queries) is used.
func NewService(store Store, emb embedder.Embedder, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		embedder: emb,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search executes a hybrid query and returns up to Count distinct parent
// sections in descending order of their best matching chunk's similarity.
//
// Candidates are walked in similarity order; chunks at or below the threshold
// are cut, chunks whose owning section fails the metadata filter are skipped,
// and later chunks of an already-selected section are folded into it. Skipped
// candidates do not count against Count, so the walk keeps refilling from
// lower-ranked chunks until Count sections are found or candidates run out.
func (s *Service) Search(ctx context.Context, query Query) ([]SectionMatch, error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "retrieval.Search",
			trace.WithAttributes(
				attribute.Int("query.count", query.Count),
				attribute.Float64("query.threshold", query.Threshold),
				attribute.Int("query.filter_keys", len(query.Filter)),
			))
		defer span.End()
	}

	if err := query.Validate(); err != nil {
		return nil, err
	}

	candidates, err := s.store.RankChunks(ctx, query.Embedding)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	sections := make(map[string]*ParentSection)
	results := make([]SectionMatch, 0, query.Count)

	for i := range candidates {
		// Candidates are sorted descending, so the first sub-threshold
		// similarity ends the walk.
		if candidates[i].Similarity <= query.Threshold {
			break
		}
		if seen[candidates[i].SectionID] {
			continue
		}

		section, ok := sections[candidates[i].SectionID]
		if !ok {
			section, err = s.store.GetSection(ctx, candidates[i].SectionID)
			if err != nil {
				if types.CodeOf(err) == types.SECTION_NOT_FOUND {
					// Orphaned chunk; skip it rather than fail the query.
					s.logger.Warn("chunk references missing section",
						"chunk_id", candidates[i].ChunkID,
						"section_id", candidates[i].SectionID)
					seen[candidates[i].SectionID] = true
					continue
				}
				return nil, err
			}
			sections[candidates[i].SectionID] = section
		}

		if !matchesFilter(section.Metadata, query.Filter) {
			seen[candidates[i].SectionID] = true
			continue
		}

		seen[candidates[i].SectionID] = true
		results = append(results, SectionMatch{
			Section:    *section,
			Similarity: candidates[i].Similarity,
		})

		if len(results) >= query.Count {
			break
		}
	}

	s.logger.Debug("retrieval search complete",
		"candidates", len(candidates),
		"results", len(results),
		"requested", query.Count)

	return results, nil
}

// SearchText embeds the query text and runs Search. Requires an embedder.
func (s *Service) SearchText(ctx context.Context, text string, threshold float64, count int, filter map[string]any) ([]SectionMatch, error) {
	if s.embedder == nil {
		return nil, types.NewError(types.RETRIEVAL_FAILED, "no embedder configured for text search")
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, types.WrapRetryableError(types.EMBED_FAILED, "failed to embed query text", err)
	}

	return s.Search(ctx, Query{
		Embedding: embedding,
		Threshold: threshold,
		Count:     count,
		Filter:    filter,
	})
}
