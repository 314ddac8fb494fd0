package tools

import (
	"fmt"
	"strings"
)

// FieldResolver maps untrusted field identifiers onto a fixed set of canonical names.
// Identifiers are compared after NormalizeName, then looked up in an alias table.
type FieldResolver struct {
	canonical []string
	lookup    map[string]string
}

// MustFieldResolver builds a resolver for canonical plus aliases (alias -> canonical).
// It panics if an alias targets a name outside canonical.
func MustFieldResolver(canonical []string, aliases map[string]string) *FieldResolver {
	r := &FieldResolver{
		canonical: append([]string(nil), canonical...),
		lookup:    make(map[string]string, len(canonical)+len(aliases)),
	}
	known := make(map[string]bool, len(canonical))
	for _, name := range canonical {
		known[name] = true
		r.lookup[NormalizeName(name)] = name
	}
	for alias, target := range aliases {
		if !known[target] {
			panic(fmt.Sprintf("tools: alias %q targets unknown field %q", alias, target))
		}
		r.lookup[NormalizeName(alias)] = target
	}
	return r
}

// NormalizeName lowercases s and strips underscores, hyphens and whitespace
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case '_', '-', ' ', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lookup resolves a single identifier
func (r *FieldResolver) Lookup(name string) (string, bool) {
	canonical, ok := r.lookup[NormalizeName(name)]
	return canonical, ok
}

// Resolve splits names into canonical fields and rejected identifiers.
// Both lists are deduplicated and keep first-seen order; rejected keeps the caller's spelling.
func (r *FieldResolver) Resolve(names []string) (resolved, rejected []string) {
	resolved = []string{}
	rejected = []string{}
	seen := make(map[string]bool, len(names))
	seenRejected := make(map[string]bool)

	for _, name := range names {
		canonical, ok := r.Lookup(name)
		if !ok {
			if !seenRejected[name] {
				seenRejected[name] = true
				rejected = append(rejected, name)
			}
			continue
		}
		if !seen[canonical] {
			seen[canonical] = true
			resolved = append(resolved, canonical)
		}
	}
	return resolved, rejected
}

// Canonical returns the canonical names in declaration order
func (r *FieldResolver) Canonical() []string {
	return append([]string(nil), r.canonical...)
}
