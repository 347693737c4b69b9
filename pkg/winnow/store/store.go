package store

import (
	"context"
	"time"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/counts"
	"github.com/cognicore/winnow/pkg/winnow/rules"
)

// Store is the main interface for persisting winnow data. A dataset may carry
// several tokenized fields; everything is scoped by field key.
type Store interface {
	Close() error

	// Occurrences
	UpsertDocTokens(ctx context.Context, field, docID string, occs []corpus.Occurrence) error
	DeleteDoc(ctx context.Context, field, docID string) error
	LoadField(ctx context.Context, field string) (*corpus.Corpus, error)
	Fields(ctx context.Context) ([]string, error)

	// Ordered rule lists
	SaveRules(ctx context.Context, field string, list []rules.Rule) error
	AppendRule(ctx context.Context, field string, r rules.Rule) error
	LoadRules(ctx context.Context, field string) ([]rules.Rule, error)

	// Exclusion flags. SaveExclusions replaces the field+variant's flags as
	// one logical operation: readers never see a partially-updated set.
	SaveExclusions(ctx context.Context, field string, variant corpus.Variant, flags []Exclusion) error
	LoadExclusions(ctx context.Context, field string, variant corpus.Variant) ([]Exclusion, error)

	// Filter-run audit trail
	RecordRun(ctx context.Context, run Run) error
	Runs(ctx context.Context, field string) ([]Run, error)
}

// Exclusion is one row's persisted flag, keyed the way the aggregated
// table groups.
type Exclusion struct {
	Term     string
	POS      string
	Stopword bool
	Excluded bool
}

// Run records one completed rule-application pass.
type Run struct {
	ID        string // ULID assigned by the caller
	Field     string
	Variant   corpus.Variant
	RuleCount int
	Counts    counts.DatasetCounts
	CreatedAt time.Time
}
