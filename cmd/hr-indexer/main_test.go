package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories/vectorstore"
)

// lengthEmbedder maps each text to a vector derived from its length
type lengthEmbedder struct {
	err   error
	short bool
}

func (e *lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestReadDocuments(t *testing.T) {
	t.Run("valid with blank lines", func(t *testing.T) {
		input := `{"id":"leave-1","text":"Two days per month.","metadata":{"section_name":"Leave"}}

{"id":"leave-2","text":"Unused leave carries over."}
`
		docs, err := readDocuments(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "leave-1", docs[0].ID)
		assert.Equal(t, "Leave", docs[0].Section())
		assert.Equal(t, "leave-2", docs[1].ID)
	})

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"missing id", `{"text":"x"}`, "line 1: document has no id"},
		{"missing text", `{"id":"a"}`, "line 1: document a has no text"},
		{"duplicate id", "{\"id\":\"a\",\"text\":\"x\"}\n{\"id\":\"a\",\"text\":\"y\"}", "line 2: duplicate document id a (first on line 1)"},
		{"bad json", `{"id":`, "line 1:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readDocuments(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadEmployees(t *testing.T) {
	input := `{"employee_id":"1","name":"John Doe","department":"IT","job_title":"Software Engineer","salary":75000,"leaves_taken_this_month":2}`

	employees, err := readEmployees(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "John Doe", employees[0].Name)
	assert.Equal(t, 75000.0, employees[0].Salary)
	assert.Equal(t, 2, employees[0].LeavesTakenThisMonth)

	_, err = readEmployees(strings.NewReader(`{"name":"Nobody"}`))
	assert.EqualError(t, err, "line 1: employee has no employee_id")
}

func TestIndexCorpus(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "policies.db"))
	require.NoError(t, err)
	defer store.Close()

	docs := []models.Document{
		{ID: "b", Text: "second policy text"},
		{ID: "a", Text: "first"},
	}

	t.Run("saves in input order", func(t *testing.T) {
		require.NoError(t, indexCorpus(ctx, store, &lengthEmbedder{}, vectorstore.CorpusFull, docs))

		mem, err := store.Load(ctx, vectorstore.CorpusFull)
		require.NoError(t, err)
		assert.Equal(t, 2, mem.Len())
		assert.Equal(t, 2, mem.Dimension())
	})

	t.Run("embedding failure", func(t *testing.T) {
		err := indexCorpus(ctx, store, &lengthEmbedder{err: errors.New("ollama down")}, vectorstore.CorpusQA, docs)
		assert.ErrorContains(t, err, "failed to embed corpus qa")
	})

	t.Run("embedding count mismatch", func(t *testing.T) {
		err := indexCorpus(ctx, store, &lengthEmbedder{short: true}, vectorstore.CorpusQA, docs)
		assert.ErrorContains(t, err, "got 1 embeddings for 2 documents")
	})
}

func TestBuildIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	qaPath := filepath.Join(dir, "qa.jsonl")
	require.NoError(t, os.WriteFile(qaPath, []byte(
		`{"id":"qa-1","text":"Q: How many leave days? A: Two per month.","metadata":{"section_name":"Leave"}}`+"\n"), 0o600))

	f := flags{qaPath: qaPath, indexPath: filepath.Join(dir, "policies.db")}
	require.NoError(t, buildIndex(ctx, f, &lengthEmbedder{}, zap.NewNop()))

	store, err := vectorstore.OpenSQLite(ctx, f.indexPath)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(ctx, vectorstore.CorpusQA)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.Count(ctx, vectorstore.CorpusFull)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBuildIndexMissingFile(t *testing.T) {
	dir := t.TempDir()
	f := flags{fullPath: filepath.Join(dir, "missing.jsonl"), indexPath: filepath.Join(dir, "policies.db")}

	err := buildIndex(context.Background(), f, &lengthEmbedder{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRunRequiresWork(t *testing.T) {
	t.Setenv("INDEX_PATH", filepath.Join(t.TempDir(), "policies.db"))

	err := run(context.Background(), nil)
	assert.ErrorContains(t, err, "nothing to do")
}
