package corpus

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cognicore/winnow/pkg/winnow/internalerr"
)

// Variant selects which surface form of a token is active for a field.
type Variant string

const (
	VariantRaw   Variant = "raw"
	VariantStem  Variant = "stem"
	VariantLemma Variant = "lemma"
)

// Valid reports whether v is a recognized surface-form variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantRaw, VariantStem, VariantLemma:
		return true
	}
	return false
}

// Occurrence is one token instance within one document. Occurrences are
// immutable once ingested; the TF-IDF weights are filled in by a corpus-wide
// ComputeWeights pass after all documents are present.
type Occurrence struct {
	DocID    string
	Position int

	Raw   string
	Stem  string
	Lemma string

	POS      string
	Stopword bool

	RawTFIDF   float64
	StemTFIDF  float64
	LemmaTFIDF float64
}

// Value returns the occurrence's surface form for the given variant.
func (o Occurrence) Value(v Variant) string {
	switch v {
	case VariantStem:
		return o.Stem
	case VariantLemma:
		return o.Lemma
	default:
		return o.Raw
	}
}

// Weight returns the occurrence's TF-IDF weight for the given variant.
func (o Occurrence) Weight(v Variant) float64 {
	switch v {
	case VariantStem:
		return o.StemTFIDF
	case VariantLemma:
		return o.LemmaTFIDF
	default:
		return o.RawTFIDF
	}
}

// Corpus holds the tokenized occurrences of one field, keyed by document id.
type Corpus struct {
	docs  map[string][]Occurrence
	order []string // doc ids in first-ingest order
}

// New creates an empty corpus.
func New() *Corpus {
	return &Corpus{docs: make(map[string][]Occurrence)}
}

// Ingest stores the occurrences of one document. Re-ingesting a document id
// replaces its previous occurrences. The occurrences are validated and
// normalized (surface forms trimmed and lower-cased, positions ordered);
// a record missing its raw text or POS tag fails with ErrMalformedToken
// and leaves the corpus untouched for that document.
func (c *Corpus) Ingest(docID string, occs []Occurrence) error {
	if docID == "" {
		return fmt.Errorf("ingest: empty document id: %w", internalerr.ErrMalformedToken)
	}

	normalized := make([]Occurrence, len(occs))
	for i, o := range occs {
		o.Raw = normalize(o.Raw)
		o.Stem = normalize(o.Stem)
		o.Lemma = normalize(o.Lemma)
		o.POS = strings.TrimSpace(o.POS)
		if o.Raw == "" || o.POS == "" || o.Position < 0 {
			return fmt.Errorf("ingest doc %q token %d: %w", docID, i, internalerr.ErrMalformedToken)
		}
		// Stem/lemma fall back to the raw form when the tokenizer
		// provides no variant.
		if o.Stem == "" {
			o.Stem = o.Raw
		}
		if o.Lemma == "" {
			o.Lemma = o.Raw
		}
		o.DocID = docID
		normalized[i] = o
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Position < normalized[j].Position
	})

	if _, exists := c.docs[docID]; !exists {
		c.order = append(c.order, docID)
	}
	c.docs[docID] = normalized
	return nil
}

// Remove drops a document and its occurrences. Removing an unknown id is a no-op.
func (c *Corpus) Remove(docID string) {
	if _, ok := c.docs[docID]; !ok {
		return
	}
	delete(c.docs, docID)
	for i, id := range c.order {
		if id == docID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// DocIDs returns the document ids in first-ingest order.
func (c *Corpus) DocIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Doc returns the ordered occurrences of one document.
func (c *Corpus) Doc(docID string) ([]Occurrence, bool) {
	occs, ok := c.docs[docID]
	if !ok {
		return nil, false
	}
	out := make([]Occurrence, len(occs))
	copy(out, occs)
	return out, true
}

// TotalDocs returns the number of ingested documents.
func (c *Corpus) TotalDocs() int { return len(c.docs) }

// TotalTokens returns the number of occurrences across all documents.
func (c *Corpus) TotalTokens() int {
	n := 0
	for _, occs := range c.docs {
		n += len(occs)
	}
	return n
}

// Occurrences streams every occurrence in document order.
func (c *Corpus) Occurrences() []Occurrence {
	out := make([]Occurrence, 0, c.TotalTokens())
	for _, id := range c.order {
		out = append(out, c.docs[id]...)
	}
	return out
}

// ComputeWeights runs the corpus-wide IDF pass and fills in the TF-IDF weight
// of every occurrence, independently per surface-form variant:
// idf(term) = ln(totalDocs / docFreq(term)), weight = tf(term, doc) × idf(term).
// Safe to call again after new documents are ingested; weights are recomputed
// from scratch.
func (c *Corpus) ComputeWeights() {
	total := float64(len(c.docs))
	if total == 0 {
		return
	}

	for _, v := range []Variant{VariantRaw, VariantStem, VariantLemma} {
		df := c.docFreq(v)
		for id, occs := range c.docs {
			tf := make(map[string]int, len(occs))
			for _, o := range occs {
				tf[o.Value(v)]++
			}
			for i := range occs {
				term := occs[i].Value(v)
				idf := math.Log(total / float64(df[term]))
				w := float64(tf[term]) * idf
				switch v {
				case VariantRaw:
					occs[i].RawTFIDF = w
				case VariantStem:
					occs[i].StemTFIDF = w
				case VariantLemma:
					occs[i].LemmaTFIDF = w
				}
			}
			c.docs[id] = occs
		}
	}
}

// docFreq counts, per term of the given variant, how many documents contain it.
func (c *Corpus) docFreq(v Variant) map[string]int {
	df := make(map[string]int)
	for _, occs := range c.docs {
		seen := make(map[string]struct{}, len(occs))
		for _, o := range occs {
			term := o.Value(v)
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	return df
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
