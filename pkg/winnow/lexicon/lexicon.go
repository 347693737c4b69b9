// Package lexicon maps inflected surface forms to canonical lemmas.
// It backs the lemma surface-form variant when no full NLP tagger is wired in.
package lexicon

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon stores lemma groups:
// canonical form -> all variants, and variant -> canonical for lookup.
// Example: "analyze" -> ["analyze", "analyzes", "analyzed", "analyzing"].
type Lexicon struct {
	groups       map[string][]string
	reverseIndex map[string]string
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		groups:       make(map[string][]string),
		reverseIndex: make(map[string]string),
	}
}

// LoadFromYAML loads lemma groups from a YAML file.
//
// Expected format:
//
//	lemmas:
//	  - canonical: analyze
//	    variants: [analyzes, analyzed, analyzing]
//	  - canonical: run
//	    variants: [runs, ran, running]
//
// Case-insensitive: all forms are normalized to lowercase.
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config struct {
		Lemmas []struct {
			Canonical string   `yaml:"canonical"`
			Variants  []string `yaml:"variants"`
		} `yaml:"lemmas"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	lex := New()
	for _, entry := range config.Lemmas {
		lex.AddGroup(entry.Canonical, entry.Variants)
	}
	return lex, nil
}

// AddGroup registers a canonical lemma and its variant forms. Re-adding a
// canonical replaces its previous group; stale reverse entries are cleaned up.
func (l *Lexicon) AddGroup(canonical string, variants []string) {
	canonical = strings.ToLower(strings.TrimSpace(canonical))
	if canonical == "" {
		return
	}

	if old, exists := l.groups[canonical]; exists {
		for _, v := range old {
			delete(l.reverseIndex, v)
		}
	}

	group := []string{canonical}
	seen := map[string]bool{canonical: true}
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		group = append(group, v)
	}

	l.groups[canonical] = group
	for _, v := range group {
		l.reverseIndex[v] = canonical
	}
}

// Lemma returns the canonical lemma for a surface form, or the form itself
// when it is not in any group.
func (l *Lexicon) Lemma(form string) string {
	form = strings.ToLower(form)
	if canonical, ok := l.reverseIndex[form]; ok {
		return canonical
	}
	return form
}

// Variants returns all forms of a canonical lemma, the canonical first.
func (l *Lexicon) Variants(canonical string) []string {
	group, ok := l.groups[strings.ToLower(canonical)]
	if !ok {
		return nil
	}
	out := make([]string, len(group))
	copy(out, group)
	return out
}

// Size returns the number of lemma groups.
func (l *Lexicon) Size() int { return len(l.groups) }
