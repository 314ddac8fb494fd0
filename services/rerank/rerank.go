// Package rerank scores candidate passages against a query.
package rerank

import (
	"context"
	"math"
	"sort"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// Unscored is the score of a candidate the reranker returned no score for.
// It sorts after every real score.
var Unscored = math.Inf(-1)

// Reranker orders candidates by estimated relevance to query, most relevant first
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.Document) ([]models.RankedPassage, error)
}

// sortPassages orders passages by score descending; equal scores keep their current order
func sortPassages(passages []models.RankedPassage) {
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
}
