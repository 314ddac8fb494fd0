package vectorstore

import (
	"context"
	"fmt"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// Embedder turns texts into vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index answers text queries against a Memory index by embedding the query first
type Index struct {
	name     string
	store    *Memory
	embedder Embedder
}

// NewIndex binds store to embedder under a corpus name used in errors
func NewIndex(name string, store *Memory, embedder Embedder) *Index {
	return &Index{name: name, store: store, embedder: embedder}
}

// Name returns the corpus name
func (i *Index) Name() string {
	return i.name
}

// Len returns the number of indexed documents
func (i *Index) Len() int {
	return i.store.Len()
}

// SimilaritySearch embeds query and returns the k nearest documents passing filter
func (i *Index) SimilaritySearch(ctx context.Context, query string, k int, filter *models.MetadataFilter) ([]models.RankedPassage, error) {
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%s index: embed query: %w", i.name, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%s index: expected 1 embedding, got %d", i.name, len(vectors))
	}

	hits, err := i.store.Search(ctx, vectors[0], k, filter)
	if err != nil {
		return nil, fmt.Errorf("%s index: %w", i.name, err)
	}
	return hits, nil
}
