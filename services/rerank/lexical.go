package rerank

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// BM25 parameters
const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// Lexical is an Okapi BM25 reranker whose statistics come from the candidate set itself
type Lexical struct {
	k1 float64
	b  float64
}

// NewLexical creates a BM25 reranker with the usual k1 and b
func NewLexical() *Lexical {
	return &Lexical{k1: defaultK1, b: defaultB}
}

// Rerank scores every candidate. It never fails.
func (l *Lexical) Rerank(_ context.Context, query string, candidates []models.Document) ([]models.RankedPassage, error) {
	out := make([]models.RankedPassage, len(candidates))
	if len(candidates) == 0 {
		return out, nil
	}

	docs := make([]map[string]int, len(candidates))
	lengths := make([]int, len(candidates))
	df := make(map[string]int)
	total := 0

	for i, c := range candidates {
		tf := make(map[string]int)
		tokens := tokenize(c.Text)
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		docs[i] = tf
		lengths[i] = len(tokens)
		total += len(tokens)
	}

	n := float64(len(candidates))
	avgLen := float64(total) / n
	if avgLen == 0 {
		avgLen = 1
	}

	terms := uniqueTokens(query)
	for i, c := range candidates {
		var score float64
		for _, term := range terms {
			tf := float64(docs[i][term])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			norm := tf + l.k1*(1-l.b+l.b*float64(lengths[i])/avgLen)
			score += idf * tf * (l.k1 + 1) / norm
		}
		out[i] = models.RankedPassage{Document: c, Score: score}
	}

	sortPassages(out)
	return out, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokenize(s) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}
