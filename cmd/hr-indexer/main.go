// Command hr-indexer builds the policy vector index and imports the employee directory.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"go.uber.org/zap"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/config"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/internal/observability"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories/postgres"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/repositories/vectorstore"
	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/services/embedding"
)

const envVarPrefix = "HR_INDEXER"

// maxLineBytes bounds one JSONL record
const maxLineBytes = 4 << 20

type flags struct {
	fullPath      string
	qaPath        string
	employeesPath string
	indexPath     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, slices.Clone(os.Args[1:])); err != nil {
		fmt.Fprintf(os.Stderr, "hr-indexer: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("hr-indexer", flag.ContinueOnError)
	var f flags
	fs.StringVar(&f.fullPath, "full", "", "JSONL file of full policy sections for the full corpus")
	fs.StringVar(&f.qaPath, "qa", "", "JSONL file of question/answer passages for the qa corpus")
	fs.StringVar(&f.employeesPath, "employees", "", "JSONL file of employee records to upsert into Postgres")
	fs.StringVar(&f.indexPath, "index", cfg.Index.Path, "Path of the SQLite index file")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(envVarPrefix)); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fs.Usage()
			return nil
		}
		return err
	}
	if f.fullPath == "" && f.qaPath == "" && f.employeesPath == "" {
		fs.Usage()
		return errors.New("nothing to do: pass -full, -qa or -employees")
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if f.fullPath != "" || f.qaPath != "" {
		embedder := embedding.NewOllamaClient(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Timeout:   cfg.Embedding.Timeout,
			BatchSize: cfg.Embedding.BatchSize,
		})
		if err := buildIndex(ctx, f, embedder, logger); err != nil {
			return err
		}
	}

	if f.employeesPath != "" {
		if cfg.Database == nil {
			return errors.New("-employees requires DATABASE_URL or DB_HOST")
		}
		if err := importEmployees(ctx, *cfg.Database, f.employeesPath, logger); err != nil {
			return err
		}
	}
	return nil
}

// buildIndex embeds every given corpus file and replaces that corpus in the index file
func buildIndex(ctx context.Context, f flags, embedder vectorstore.Embedder, logger *zap.Logger) error {
	store, err := vectorstore.OpenSQLite(ctx, f.indexPath)
	if err != nil {
		return err
	}
	defer store.Close()

	corpora := []struct {
		name string
		path string
	}{
		{vectorstore.CorpusFull, f.fullPath},
		{vectorstore.CorpusQA, f.qaPath},
	}
	for _, c := range corpora {
		if c.path == "" {
			continue
		}
		docs, err := readFile(c.path, readDocuments)
		if err != nil {
			return err
		}
		if err := indexCorpus(ctx, store, embedder, c.name, docs); err != nil {
			return err
		}
		logger.Info("corpus indexed",
			zap.String("corpus", c.name),
			zap.String("source", c.path),
			zap.Int("documents", len(docs)),
			zap.String("index", f.indexPath))
	}
	return nil
}

// indexCorpus embeds docs in order and saves them as corpus
func indexCorpus(ctx context.Context, store *vectorstore.SQLite, embedder vectorstore.Embedder, corpus string, docs []models.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed corpus %s: %w", corpus, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("corpus %s: got %d embeddings for %d documents", corpus, len(vectors), len(docs))
	}

	embedded := make([]vectorstore.EmbeddedDocument, len(docs))
	for i, d := range docs {
		embedded[i] = vectorstore.EmbeddedDocument{Document: d, Embedding: vectors[i]}
	}
	return store.Save(ctx, corpus, embedded)
}

func importEmployees(ctx context.Context, cfg config.DatabaseConfig, path string, logger *zap.Logger) error {
	employees, err := readFile(path, readEmployees)
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	if err := postgres.NewEmployeeRepository(db, logger).Import(ctx, employees); err != nil {
		return err
	}

	logger.Info("employees imported",
		zap.String("source", path),
		zap.Int("employees", len(employees)))
	return nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	out, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// readDocuments parses one {"id","text","metadata"} object per line. Ids must be unique.
func readDocuments(r io.Reader) ([]models.Document, error) {
	var docs []models.Document
	seen := make(map[string]int)

	err := eachLine(r, func(line int, raw []byte) error {
		var doc models.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		if doc.ID == "" {
			return errors.New("document has no id")
		}
		if doc.Text == "" {
			return fmt.Errorf("document %s has no text", doc.ID)
		}
		if first, ok := seen[doc.ID]; ok {
			return fmt.Errorf("duplicate document id %s (first on line %d)", doc.ID, first)
		}
		seen[doc.ID] = line
		docs = append(docs, doc)
		return nil
	})
	return docs, err
}

// readEmployees parses one employee record per line
func readEmployees(r io.Reader) ([]*models.Employee, error) {
	var employees []*models.Employee

	err := eachLine(r, func(_ int, raw []byte) error {
		e := &models.Employee{}
		if err := json.Unmarshal(raw, e); err != nil {
			return err
		}
		if e.EmployeeID == "" {
			return errors.New("employee has no employee_id")
		}
		employees = append(employees, e)
		return nil
	})
	return employees, err
}

// eachLine calls fn for every non-blank line of r, numbering lines from 1
func eachLine(r io.Reader, fn func(line int, raw []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if err := fn(line, raw); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
