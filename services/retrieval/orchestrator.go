// Package retrieval turns an HR policy question into a block of context passages.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/rerank"
)

// PassageSeparator joins the selected passages
const PassageSeparator = "\n\n"

// VectorIndex is a text similarity index over one corpus
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, query string, k int, filter *models.MetadataFilter) ([]models.RankedPassage, error)
}

// Options tunes the retrieval pipeline
type Options struct {
	FullK    int           // hits taken from the full-document index
	Sections int           // leading full-document hits whose sections are searched
	SectionK int           // Q&A hits taken per section
	TopN     int           // passages kept after reranking
	MinScore float64       // similarity floor for full-document hits
	Timeout  time.Duration // budget for the whole retrieval, 0 for none
}

// DefaultOptions returns the standard pipeline sizes
func DefaultOptions() Options {
	return Options{
		FullK:    10,
		Sections: 2,
		SectionK: 10,
		TopN:     3,
		Timeout:  30 * time.Second,
	}
}

// Orchestrator searches the full-document index to find relevant sections, searches the
// Q&A index within those sections, reranks the candidates and keeps the best passages.
type Orchestrator struct {
	full     VectorIndex
	qa       VectorIndex
	reranker rerank.Reranker
	opts     Options
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator creates an orchestrator. Non-positive sizes take their defaults.
func NewOrchestrator(full, qa VectorIndex, reranker rerank.Reranker, opts Options, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	defaults := DefaultOptions()
	if opts.FullK <= 0 {
		opts.FullK = defaults.FullK
	}
	if opts.Sections <= 0 {
		opts.Sections = defaults.Sections
	}
	if opts.SectionK <= 0 {
		opts.SectionK = defaults.SectionK
	}
	if opts.TopN <= 0 {
		opts.TopN = defaults.TopN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		full:     full,
		qa:       qa,
		reranker: reranker,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Options returns the effective options
func (o *Orchestrator) Options() Options {
	return o.opts
}

// Retrieve returns the selected passages joined by PassageSeparator, or "" when nothing
// relevant was found or retrieval failed.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) string {
	start := time.Now()
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	passages, err := o.retrieve(ctx, query)
	if err != nil {
		o.logger.Warn("policy retrieval failed", zap.String("query", query), zap.Error(err))
		o.metrics.ObserveRetrieval(time.Since(start), observability.RetrievalFailed)
		return ""
	}
	if len(passages) == 0 {
		o.logger.Debug("no policy passages matched", zap.String("query", query))
		o.metrics.ObserveRetrieval(time.Since(start), observability.RetrievalEmpty)
		return ""
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Document.Text
	}

	o.logger.Debug("policy retrieval completed",
		zap.String("query", query),
		zap.Int("passages", len(passages)),
		zap.Duration("latency", time.Since(start)))
	o.metrics.ObserveRetrieval(time.Since(start), observability.RetrievalContext)

	return strings.Join(texts, PassageSeparator)
}

func (o *Orchestrator) retrieve(ctx context.Context, query string) ([]models.RankedPassage, error) {
	if o.full == nil || o.qa == nil {
		return nil, errors.New("policy indexes not loaded")
	}

	fullHits, err := o.full.SimilaritySearch(ctx, query, o.opts.FullK, nil)
	if err != nil {
		return nil, err
	}
	fullHits = aboveScore(fullHits, o.opts.MinScore)
	if len(fullHits) == 0 {
		return nil, nil
	}

	sections := leadingSections(fullHits, o.opts.Sections)

	var candidates []models.Document
	seen := make(map[string]bool)
	for _, section := range sections {
		filter := &models.MetadataFilter{Field: models.SectionNameKey, Value: section}
		hits, err := o.qa.SimilaritySearch(ctx, query, o.opts.SectionK, filter)
		if err != nil {
			return nil, err
		}
		candidates = appendUnique(candidates, seen, hits)
	}

	if len(candidates) == 0 {
		o.logger.Debug("no q&a passages in matched sections, using full documents",
			zap.Strings("sections", sections))
		candidates = appendUnique(nil, make(map[string]bool), fullHits)
	}

	return o.rank(ctx, query, candidates), nil
}

// rank reranks candidates and keeps the first TopN. A reranker failure, or a reranker
// that returns nothing for a non-empty candidate set, keeps candidate order.
func (o *Orchestrator) rank(ctx context.Context, query string, candidates []models.Document) []models.RankedPassage {
	var ranked []models.RankedPassage
	if o.reranker != nil {
		var err error
		ranked, err = o.reranker.Rerank(ctx, query, candidates)
		if err != nil {
			o.logger.Warn("reranking failed, keeping retrieval order", zap.Error(err))
			ranked = nil
		} else if len(ranked) == 0 && len(candidates) > 0 {
			o.logger.Warn("reranker returned no passages, keeping retrieval order",
				zap.Int("candidates", len(candidates)))
		}
	}
	if len(ranked) == 0 {
		ranked = make([]models.RankedPassage, len(candidates))
		for i, c := range candidates {
			ranked[i] = models.RankedPassage{Document: c}
		}
	}

	order := make(map[string]int, len(candidates))
	for i, c := range candidates {
		order[c.ID] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return order[ranked[i].Document.ID] < order[ranked[j].Document.ID]
	})

	if len(ranked) > o.opts.TopN {
		ranked = ranked[:o.opts.TopN]
	}
	return ranked
}

func aboveScore(hits []models.RankedPassage, min float64) []models.RankedPassage {
	if min <= 0 {
		return hits
	}
	out := make([]models.RankedPassage, 0, len(hits))
	for _, h := range hits {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}

// leadingSections returns the distinct non-empty section names of the first n hits
func leadingSections(hits []models.RankedPassage, n int) []string {
	if len(hits) > n {
		hits = hits[:n]
	}
	var sections []string
	seen := make(map[string]bool)
	for _, h := range hits {
		name := h.Document.Section()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sections = append(sections, name)
	}
	return sections
}

func appendUnique(dst []models.Document, seen map[string]bool, hits []models.RankedPassage) []models.Document {
	for _, h := range hits {
		if seen[h.Document.ID] {
			continue
		}
		seen[h.Document.ID] = true
		dst = append(dst, h.Document)
	}
	return dst
}
