// Package aggregate builds the grouped vocabulary view of a tokenized field:
// one row per unique (surface form, POS tag, stopword flag) combination, with
// occurrence and document counts and their percentages of the current table.
package aggregate

import (
	"math"
	"sort"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/progress"
)

// Member is one occurrence folded into a row: the document it came from and
// its TF-IDF weight under the table's active variant. The raw per-occurrence
// weights are preserved because quantile rules need the full distribution.
type Member struct {
	DocID string
	TFIDF float64
}

// Row is one aggregated group.
type Row struct {
	Term     string
	POS      string
	Stopword bool
	Excluded bool

	WordCount int
	DocCount  int
	WordPct   float64
	DocPct    float64

	Members []Member
}

// TFIDFValues returns the row's per-occurrence weight multiset.
func (r Row) TFIDFValues() []float64 {
	out := make([]float64, len(r.Members))
	for i, m := range r.Members {
		out[i] = m.TFIDF
	}
	return out
}

// DocumentKeys returns the set of document ids touching this row.
func (r Row) DocumentKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(r.Members))
	for _, m := range r.Members {
		keys[m.DocID] = struct{}{}
	}
	return keys
}

// Table is the aggregated view of one field under one surface-form variant.
type Table struct {
	Variant corpus.Variant
	Rows    []Row
}

// Record is one exploded row-occurrence pair, used by the quantile
// explode/re-aggregate cycle. Counts and percentages are dropped on explode
// and re-derived by FromRecords.
type Record struct {
	Term     string
	POS      string
	Stopword bool
	Excluded bool
	DocID    string
	TFIDF    float64
}

// Aggregate groups a corpus's occurrences under the given variant.
// An empty corpus yields an empty table.
func Aggregate(c *corpus.Corpus, v corpus.Variant, sink progress.Sink) Table {
	occs := c.Occurrences()
	records := make([]Record, len(occs))
	for i, o := range occs {
		records[i] = Record{
			Term:     o.Value(v),
			POS:      o.POS,
			Stopword: o.Stopword,
			DocID:    o.DocID,
			TFIDF:    o.Weight(v),
		}
	}
	return FromRecords(records, v, sink)
}

// Explode flattens a table into row-occurrence records, carrying the
// exclusion state accumulated so far.
func Explode(t Table) []Record {
	var out []Record
	for _, r := range t.Rows {
		for _, m := range r.Members {
			out = append(out, Record{
				Term:     r.Term,
				POS:      r.POS,
				Stopword: r.Stopword,
				Excluded: r.Excluded,
				DocID:    m.DocID,
				TFIDF:    m.TFIDF,
			})
		}
	}
	return out
}

type groupKey struct {
	term     string
	pos      string
	stopword bool
	excluded bool
}

// FromRecords re-aggregates exploded records into a table, recomputing counts
// and percentages against the records' own totals. Grouping includes the
// exclusion flag, so records of one former group that diverged in exclusion
// state land in separate rows.
func FromRecords(records []Record, v corpus.Variant, sink progress.Sink) Table {
	if sink == nil {
		sink = progress.Noop{}
	}

	groups := make(map[groupKey][]Member)
	allDocs := make(map[string]struct{})
	for _, rec := range records {
		k := groupKey{rec.Term, rec.POS, rec.Stopword, rec.Excluded}
		groups[k] = append(groups[k], Member{DocID: rec.DocID, TFIDF: rec.TFIDF})
		allDocs[rec.DocID] = struct{}{}
	}

	totalWords := float64(len(records))
	totalDocs := float64(len(allDocs))

	rows := make([]Row, 0, len(groups))
	done := 0
	for k, members := range groups {
		// Canonical member order keeps tables comparable regardless of
		// which pool shard ingested each document.
		sort.Slice(members, func(i, j int) bool {
			if members[i].DocID != members[j].DocID {
				return members[i].DocID < members[j].DocID
			}
			return members[i].TFIDF < members[j].TFIDF
		})
		row := Row{
			Term:      k.term,
			POS:       k.pos,
			Stopword:  k.stopword,
			Excluded:  k.excluded,
			WordCount: len(members),
			Members:   members,
		}
		docs := make(map[string]struct{}, len(members))
		for _, m := range members {
			docs[m.DocID] = struct{}{}
		}
		row.DocCount = len(docs)
		row.WordPct = round2(float64(row.WordCount) / totalWords * 100)
		row.DocPct = round2(float64(row.DocCount) / totalDocs * 100)
		rows = append(rows, row)
		done++
		sink.Report(done)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		if a.POS != b.POS {
			return a.POS < b.POS
		}
		if a.Stopword != b.Stopword {
			return !a.Stopword
		}
		return !a.Excluded && b.Excluded
	})

	return Table{Variant: v, Rows: rows}
}

// Clone returns a deep copy of the table.
func Clone(t Table) Table {
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		members := make([]Member, len(r.Members))
		copy(members, r.Members)
		r.Members = members
		rows[i] = r
	}
	return Table{Variant: t.Variant, Rows: rows}
}

// round2 rounds half-up to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
