// Package rules evaluates ordered filter-rule lists against an aggregated
// vocabulary table, deriving the per-row exclusion flag that defines the
// included working vocabulary.
package rules

import (
	"fmt"

	"github.com/cognicore/winnow/pkg/winnow/internalerr"
)

// Any is the wildcard selector value: it matches every field, term, or POS tag.
const Any = "any"

// Action identifies a rule kind.
type Action string

const (
	ActionRemove          Action = "remove"
	ActionInclude         Action = "include"
	ActionRemoveStopwords Action = "remove-stopwords"
	ActionThreshold       Action = "threshold"
	ActionQuantile        Action = "quantile"
)

// Direction says whether a parameterized rule excludes or un-excludes
// the rows it matches.
type Direction string

const (
	DirectionRemove  Direction = "remove"
	DirectionInclude Direction = "include"
)

// Tail selects which end of the TF-IDF distribution a quantile rule targets.
type Tail string

const (
	TailLower Tail = "lower"
	TailUpper Tail = "upper"
)

// Comparator is a numeric comparison operator for threshold rules.
type Comparator string

const (
	CmpGT Comparator = ">"
	CmpGE Comparator = ">="
	CmpEQ Comparator = "="
	CmpLE Comparator = "<="
	CmpLT Comparator = "<"
)

// Column names a numeric column of the aggregated table.
type Column string

const (
	ColumnWordCount Column = "word_count"
	ColumnDocCount  Column = "doc_count"
	ColumnWordPct   Column = "word_pct"
	ColumnDocPct    Column = "doc_pct"
)

// Threshold holds the parameters of a threshold rule.
type Threshold struct {
	Direction  Direction
	Column     Column
	Comparator Comparator
	Value      float64
}

// Quantile holds the parameters of a quantile rule.
type Quantile struct {
	Direction Direction
	Tail      Tail
	Fraction  float64
}

// Rule is one entry of the ordered, append-only filter list. Selectors are
// either literal values or the Any wildcard. Threshold and Quantile are set
// only for their respective actions.
type Rule struct {
	Field  string
	Term   string
	POS    string
	Action Action

	Threshold *Threshold
	Quantile  *Quantile
}

// Validate checks that the rule's selectors and parameters are within the
// recognized enumerations. All failures wrap ErrInvalidRule.
func (r Rule) Validate() error {
	if r.Field == "" || r.Term == "" || r.POS == "" {
		return fmt.Errorf("rule %s: empty selector (use %q for wildcard): %w", r.Action, Any, internalerr.ErrInvalidRule)
	}

	switch r.Action {
	case ActionRemove, ActionInclude, ActionRemoveStopwords:
		return nil

	case ActionThreshold:
		t := r.Threshold
		if t == nil {
			return fmt.Errorf("threshold rule: missing parameters: %w", internalerr.ErrInvalidRule)
		}
		if t.Direction != DirectionRemove && t.Direction != DirectionInclude {
			return fmt.Errorf("threshold rule: direction %q: %w", t.Direction, internalerr.ErrInvalidRule)
		}
		switch t.Column {
		case ColumnWordCount, ColumnDocCount, ColumnWordPct, ColumnDocPct:
		default:
			return fmt.Errorf("threshold rule: column %q: %w", t.Column, internalerr.ErrInvalidRule)
		}
		switch t.Comparator {
		case CmpGT, CmpGE, CmpEQ, CmpLE, CmpLT:
		default:
			return fmt.Errorf("threshold rule: comparator %q: %w", t.Comparator, internalerr.ErrInvalidRule)
		}
		return nil

	case ActionQuantile:
		q := r.Quantile
		if q == nil {
			return fmt.Errorf("quantile rule: missing parameters: %w", internalerr.ErrInvalidRule)
		}
		if q.Direction != DirectionRemove && q.Direction != DirectionInclude {
			return fmt.Errorf("quantile rule: direction %q: %w", q.Direction, internalerr.ErrInvalidRule)
		}
		if q.Tail != TailLower && q.Tail != TailUpper {
			return fmt.Errorf("quantile rule: tail %q: %w", q.Tail, internalerr.ErrInvalidRule)
		}
		if q.Fraction < 0 || q.Fraction > 1 {
			return fmt.Errorf("quantile rule: fraction %v outside [0,1]: %w", q.Fraction, internalerr.ErrInvalidRule)
		}
		return nil

	default:
		return fmt.Errorf("rule action %q: %w", r.Action, internalerr.ErrInvalidRule)
	}
}

// matchesField reports whether the rule touches the given field's table.
func (r Rule) matchesField(field string) bool {
	return r.Field == Any || r.Field == field
}

// matchesSelectors is the term/POS conjunction; wildcards match everything.
func (r Rule) matchesSelectors(term, pos string) bool {
	if r.Term != Any && r.Term != term {
		return false
	}
	if r.POS != Any && r.POS != pos {
		return false
	}
	return true
}
