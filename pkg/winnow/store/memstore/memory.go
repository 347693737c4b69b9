package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/rules"
	"github.com/cognicore/winnow/pkg/winnow/store"
)

// Store is an in-memory implementation of store.Store for tests and for
// workspaces that never touch disk.
type Store struct {
	mu         sync.RWMutex
	tokens     map[string]map[string][]corpus.Occurrence // field -> doc -> occurrences
	docOrder   map[string][]string                       // field -> doc ids in insert order
	ruleLists  map[string][]rules.Rule
	exclusions map[exclKey][]store.Exclusion
	runs       map[string][]store.Run
}

type exclKey struct {
	field   string
	variant corpus.Variant
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		tokens:     make(map[string]map[string][]corpus.Occurrence),
		docOrder:   make(map[string][]string),
		ruleLists:  make(map[string][]rules.Rule),
		exclusions: make(map[exclKey][]store.Exclusion),
		runs:       make(map[string][]store.Run),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertDocTokens replaces a document's occurrences.
func (s *Store) UpsertDocTokens(ctx context.Context, field, docID string, occs []corpus.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens[field] == nil {
		s.tokens[field] = make(map[string][]corpus.Occurrence)
	}
	if _, exists := s.tokens[field][docID]; !exists {
		s.docOrder[field] = append(s.docOrder[field], docID)
	}
	copied := make([]corpus.Occurrence, len(occs))
	copy(copied, occs)
	s.tokens[field][docID] = copied
	return nil
}

// DeleteDoc removes a document's occurrences.
func (s *Store) DeleteDoc(ctx context.Context, field, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if docs, ok := s.tokens[field]; ok {
		delete(docs, docID)
	}
	order := s.docOrder[field]
	for i, id := range order {
		if id == docID {
			s.docOrder[field] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

// LoadField reconstructs a field's corpus.
func (s *Store) LoadField(ctx context.Context, field string) (*corpus.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := corpus.New()
	for _, docID := range s.docOrder[field] {
		if err := c.Ingest(docID, s.tokens[field][docID]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Fields lists field keys with stored tokens.
func (s *Store) Fields(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tokens))
	for f := range s.tokens {
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

// SaveRules replaces a field's rule list.
func (s *Store) SaveRules(ctx context.Context, field string, list []rules.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]rules.Rule, len(list))
	copy(copied, list)
	s.ruleLists[field] = copied
	return nil
}

// AppendRule adds one rule at the end of a field's list.
func (s *Store) AppendRule(ctx context.Context, field string, r rules.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ruleLists[field] = append(s.ruleLists[field], r)
	return nil
}

// LoadRules returns a field's rule list in insertion order.
func (s *Store) LoadRules(ctx context.Context, field string) ([]rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.ruleLists[field]
	out := make([]rules.Rule, len(list))
	copy(out, list)
	return out, nil
}

// SaveExclusions replaces the field+variant flag set atomically.
func (s *Store) SaveExclusions(ctx context.Context, field string, variant corpus.Variant, flags []store.Exclusion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]store.Exclusion, len(flags))
	copy(copied, flags)
	s.exclusions[exclKey{field, variant}] = copied
	return nil
}

// LoadExclusions returns the persisted flags of one field+variant.
func (s *Store) LoadExclusions(ctx context.Context, field string, variant corpus.Variant) ([]store.Exclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flags := s.exclusions[exclKey{field, variant}]
	out := make([]store.Exclusion, len(flags))
	copy(out, flags)
	return out, nil
}

// RecordRun appends one filter-run audit record.
func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.Field] = append(s.runs[run.Field], run)
	return nil
}

// Runs returns a field's audit records, oldest first.
func (s *Store) Runs(ctx context.Context, field string) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.runs[field]
	out := make([]store.Run, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
