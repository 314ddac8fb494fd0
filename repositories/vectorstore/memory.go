package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding is returned when adding or searching with an empty vector
	ErrEmptyEmbedding = errors.New("empty embedding")
)

type entry struct {
	doc    models.Document
	vector []float32
	norm   float64
}

// Memory is an exact cosine-similarity index held in memory.
// Documents are added during loading; afterwards the index is read-only and safe for concurrent Search.
type Memory struct {
	entries []entry
	dim     int
	ids     map[string]bool
}

// NewMemory creates an empty index
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]bool)}
}

// Add appends a document. The first vector fixes the dimension.
func (m *Memory) Add(doc models.Document, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, ErrEmptyEmbedding)
	}
	if m.dim == 0 {
		m.dim = len(vector)
	}
	if len(vector) != m.dim {
		return fmt.Errorf("document %s has %d dimensions, index has %d: %w", doc.ID, len(vector), m.dim, ErrDimensionMismatch)
	}
	if m.ids[doc.ID] {
		return fmt.Errorf("duplicate document id %s", doc.ID)
	}
	m.ids[doc.ID] = true

	v := make([]float32, len(vector))
	copy(v, vector)
	m.entries = append(m.entries, entry{doc: doc, vector: v, norm: norm(v)})
	return nil
}

// Len returns the number of indexed documents
func (m *Memory) Len() int {
	return len(m.entries)
}

// Dimension returns the vector dimension, or 0 for an empty index
func (m *Memory) Dimension() int {
	return m.dim
}

// Search returns up to k documents matching filter, ordered by cosine similarity descending.
// Equal scores keep load order.
func (m *Memory) Search(ctx context.Context, vector []float32, k int, filter *models.MetadataFilter) ([]models.RankedPassage, error) {
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(vector), m.dim, ErrDimensionMismatch)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qnorm := norm(vector)
	hits := make([]models.RankedPassage, 0, len(m.entries))
	for _, e := range m.entries {
		if !filter.Matches(e.doc) {
			continue
		}
		hits = append(hits, models.RankedPassage{
			Document: e.doc,
			Score:    cosine(vector, qnorm, e.vector, e.norm),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
