package evidence

import (
	"context"
	"log/slog"

	"github.com/ppiankov/aletheia/internal/logger"
	"github.com/ppiankov/aletheia/internal/model"
	"github.com/ppiankov/aletheia/internal/worker"
)

// SuggestionSink stores advisory suggestions on a claim
type SuggestionSink interface {
	AttachSuggestions(ctx context.Context, claimID string, suggestions []model.Suggestion) error
}

// Enricher fetches suggestions for many claims over a bounded worker pool
type Enricher struct {
	retriever Retriever
	sink      SuggestionSink
	workers   int
	log       *slog.Logger
}

// NewEnricher creates an enricher; workers <= 0 runs one at a time
func NewEnricher(r Retriever, sink SuggestionSink, workers int, log *slog.Logger) *Enricher {
	return &Enricher{retriever: r, sink: sink, workers: workers, log: logger.OrDefault(log)}
}

// Enrich attaches suggestions to each claim that has none yet. Retrieval
// failures are logged per claim; the count of enriched claims is returned.
func (e *Enricher) Enrich(ctx context.Context, claims []model.Claim) int {
	var todo []model.Claim
	for _, c := range claims {
		if len(c.Suggestions) == 0 {
			todo = append(todo, c)
		}
	}

	tasks := make([]worker.Task[[]model.Suggestion], len(todo))
	for i, c := range todo {
		tasks[i] = func(ctx context.Context) ([]model.Suggestion, error) {
			return e.retriever.Suggest(ctx, c)
		}
	}

	enriched := 0
	for _, res := range worker.Run(ctx, e.workers, tasks) {
		claim := todo[res.Index]
		if res.Err != nil {
			e.log.Warn("evidence retrieval failed", "claim_id", claim.ID, "retriever", e.retriever.Name(), "error", res.Err)
			continue
		}
		if len(res.Value) == 0 {
			continue
		}
		if err := e.sink.AttachSuggestions(ctx, claim.ID, res.Value); err != nil {
			e.log.Warn("attaching suggestions failed", "claim_id", claim.ID, "error", err)
			continue
		}
		enriched++
	}
	return enriched
}
