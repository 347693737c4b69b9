package rules

import (
	"fmt"
	"sort"

	"github.com/cognicore/winnow/pkg/winnow/aggregate"
	"github.com/cognicore/winnow/pkg/winnow/progress"
	"github.com/cognicore/winnow/pkg/winnow/quantile"
)

// Engine applies ordered rule lists to the aggregated table of one field.
// It is a synchronous, deterministic transformation: the caller hands the
// table in, the engine hands a new table back, and no partially-updated
// state is ever observable.
type Engine struct {
	// Field is the key of the field this engine instance evaluates.
	// Rules with a different literal field selector are skipped.
	Field string

	// Progress receives group-processed counts during long passes. Optional.
	Progress progress.Sink
}

// NewEngine creates an engine for one field.
func NewEngine(field string) *Engine {
	return &Engine{Field: field, Progress: progress.Noop{}}
}

func (e *Engine) sink() progress.Sink {
	if e.Progress == nil {
		return progress.Noop{}
	}
	return e.Progress
}

// ApplyAll evaluates the full rule list in insertion order against a fresh
// exclusion state: any flags already on the table are discarded first. The
// input table is not modified. An invalid rule anywhere in the list fails the
// whole pass before any evaluation happens.
func (e *Engine) ApplyAll(t aggregate.Table, list []Rule) (aggregate.Table, error) {
	for i, r := range list {
		if err := r.Validate(); err != nil {
			return aggregate.Table{}, fmt.Errorf("rule %d: %w", i, err)
		}
	}

	// Reset to the base grouping: explode, clear flags, regroup. This also
	// collapses rows a previous quantile pass split apart.
	records := aggregate.Explode(t)
	for i := range records {
		records[i].Excluded = false
	}
	out := aggregate.FromRecords(records, t.Variant, e.sink())

	for i, r := range list {
		var err error
		out, err = e.applyRule(out, r)
		if err != nil {
			return aggregate.Table{}, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return out, nil
}

// ApplyLatest evaluates only the last rule of the list against a table whose
// exclusion state already reflects every earlier rule. Equivalent to, but
// cheaper than, re-running ApplyAll from scratch.
func (e *Engine) ApplyLatest(t aggregate.Table, list []Rule) (aggregate.Table, error) {
	if len(list) == 0 {
		return aggregate.Clone(t), nil
	}
	last := list[len(list)-1]
	if err := last.Validate(); err != nil {
		return aggregate.Table{}, fmt.Errorf("rule %d: %w", len(list)-1, err)
	}
	out, err := e.applyRule(aggregate.Clone(t), last)
	if err != nil {
		return aggregate.Table{}, fmt.Errorf("rule %d: %w", len(list)-1, err)
	}
	return out, nil
}

// applyRule evaluates one rule. The remove/include state machine is:
// remove-class rules set excluded = excluded OR match, include-class rules set
// excluded = excluded AND NOT match. An include rule therefore only ever
// clears exclusion on rows it selects.
func (e *Engine) applyRule(t aggregate.Table, r Rule) (aggregate.Table, error) {
	if !r.matchesField(e.Field) {
		return t, nil
	}

	sink := e.sink()

	switch r.Action {
	case ActionRemove, ActionInclude:
		for i := range t.Rows {
			row := &t.Rows[i]
			if !r.matchesSelectors(row.Term, row.POS) {
				continue
			}
			row.Excluded = r.Action == ActionRemove
			sink.Report(i + 1)
		}
		return t, nil

	case ActionRemoveStopwords:
		// Term/POS selectors are ignored: everything flagged as a
		// stopword goes.
		for i := range t.Rows {
			if t.Rows[i].Stopword {
				t.Rows[i].Excluded = true
			}
			sink.Report(i + 1)
		}
		return t, nil

	case ActionThreshold:
		th := r.Threshold
		for i := range t.Rows {
			row := &t.Rows[i]
			match := r.matchesSelectors(row.Term, row.POS) &&
				compare(columnValue(*row, th.Column), th.Comparator, th.Value)
			applyDirection(row, th.Direction, match)
			sink.Report(i + 1)
		}
		return t, nil

	case ActionQuantile:
		return e.applyQuantile(t, r)

	default:
		// Unreachable after Validate, kept for callers that skip it.
		return aggregate.Table{}, r.Validate()
	}
}

// applyQuantile runs the explode / sort / cutoff / flag / re-aggregate cycle.
// This is the one rule kind with re-shaping cost: records of a group that land
// on opposite sides of the cutoff split into separate rows.
func (e *Engine) applyQuantile(t aggregate.Table, r Rule) (aggregate.Table, error) {
	q := r.Quantile

	records := aggregate.Explode(t)
	values := make([]float64, len(records))
	for i, rec := range records {
		values[i] = rec.TFIDF
	}
	if q.Tail == TailLower {
		sort.Float64s(values)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	}

	cutoff, err := quantile.Cutoff(values, q.Fraction)
	if err != nil {
		return aggregate.Table{}, err
	}

	for i := range records {
		rec := &records[i]
		inTail := false
		if q.Tail == TailLower {
			inTail = rec.TFIDF < cutoff
		} else {
			inTail = rec.TFIDF > cutoff
		}
		match := r.matchesSelectors(rec.Term, rec.POS) && inTail
		switch q.Direction {
		case DirectionRemove:
			rec.Excluded = rec.Excluded || match
		case DirectionInclude:
			rec.Excluded = rec.Excluded && !match
		}
	}

	return aggregate.FromRecords(records, t.Variant, e.sink()), nil
}

func applyDirection(row *aggregate.Row, d Direction, match bool) {
	switch d {
	case DirectionRemove:
		row.Excluded = row.Excluded || match
	case DirectionInclude:
		row.Excluded = row.Excluded && !match
	}
}

func columnValue(row aggregate.Row, c Column) float64 {
	switch c {
	case ColumnWordCount:
		return float64(row.WordCount)
	case ColumnDocCount:
		return float64(row.DocCount)
	case ColumnWordPct:
		return row.WordPct
	case ColumnDocPct:
		return row.DocPct
	}
	return 0
}

func compare(v float64, cmp Comparator, against float64) bool {
	switch cmp {
	case CmpGT:
		return v > against
	case CmpGE:
		return v >= against
	case CmpEQ:
		return v == against
	case CmpLE:
		return v <= against
	case CmpLT:
		return v < against
	}
	return false
}
