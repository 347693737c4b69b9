// Package sample reduces a filtered vocabulary table back to per-document
// ordered token lists, the training input handed to topic-model trainers.
package sample

import (
	"github.com/cognicore/winnow/pkg/winnow/aggregate"
	"github.com/cognicore/winnow/pkg/winnow/corpus"
)

// Doc is one document's surviving tokens in original position order.
type Doc struct {
	ID     string
	Tokens []string
}

type rowKey struct {
	term     string
	pos      string
	stopword bool
}

// FilteredDocs walks the corpus in document order and keeps each occurrence
// whose group still has a non-excluded row covering the occurrence's
// document. Documents left with no tokens are dropped entirely.
func FilteredDocs(c *corpus.Corpus, t aggregate.Table) []Doc {
	// A quantile rule can split one (term, POS, stopword) group into an
	// excluded and a non-excluded row; an occurrence survives if any
	// non-excluded sibling row touches its document.
	included := make(map[rowKey]map[string]struct{})
	for _, row := range t.Rows {
		if row.Excluded {
			continue
		}
		k := rowKey{row.Term, row.POS, row.Stopword}
		if included[k] == nil {
			included[k] = make(map[string]struct{})
		}
		for doc := range row.DocumentKeys() {
			included[k][doc] = struct{}{}
		}
	}

	var out []Doc
	for _, id := range c.DocIDs() {
		occs, _ := c.Doc(id)
		var tokens []string
		for _, o := range occs {
			term := o.Value(t.Variant)
			docs, ok := included[rowKey{term, o.POS, o.Stopword}]
			if !ok {
				continue
			}
			if _, ok := docs[id]; !ok {
				continue
			}
			tokens = append(tokens, term)
		}
		if len(tokens) == 0 {
			continue
		}
		out = append(out, Doc{ID: id, Tokens: tokens})
	}
	return out
}
