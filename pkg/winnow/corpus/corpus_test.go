package corpus

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/winnow/pkg/winnow/internalerr"
)

func occ(pos int, raw string) Occurrence {
	return Occurrence{Position: pos, Raw: raw, POS: "X"}
}

// TestIngestReplacesDocument verifies re-ingesting a document id replaces its
// previous occurrences.
func TestIngestReplacesDocument(t *testing.T) {
	c := New()
	if err := c.Ingest("d1", []Occurrence{occ(0, "old"), occ(1, "tokens")}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := c.Ingest("d1", []Occurrence{occ(0, "new")}); err != nil {
		t.Fatalf("Re-ingest: %v", err)
	}

	occs, ok := c.Doc("d1")
	if !ok {
		t.Fatal("Document should exist")
	}
	if len(occs) != 1 || occs[0].Raw != "new" {
		t.Errorf("Expected replacement with single token 'new', got %+v", occs)
	}
	if c.TotalDocs() != 1 {
		t.Errorf("Expected 1 document, got %d", c.TotalDocs())
	}
}

// TestIngestMalformed verifies incomplete records fail with ErrMalformedToken
// and leave the corpus untouched for that document.
func TestIngestMalformed(t *testing.T) {
	cases := []struct {
		name string
		occs []Occurrence
	}{
		{"missing raw text", []Occurrence{{Position: 0, POS: "NOUN"}}},
		{"missing pos tag", []Occurrence{{Position: 0, Raw: "word"}}},
		{"negative position", []Occurrence{{Position: -1, Raw: "word", POS: "NOUN"}}},
	}

	for _, tc := range cases {
		c := New()
		err := c.Ingest("d1", tc.occs)
		if !errors.Is(err, internalerr.ErrMalformedToken) {
			t.Errorf("%s: expected ErrMalformedToken, got %v", tc.name, err)
		}
		if c.TotalDocs() != 0 {
			t.Errorf("%s: failed ingest should not leave a document behind", tc.name)
		}
	}
}

// TestIngestNormalizes verifies surface forms are trimmed and lower-cased and
// missing stem/lemma variants fall back to the raw form.
func TestIngestNormalizes(t *testing.T) {
	c := New()
	err := c.Ingest("d1", []Occurrence{{Position: 0, Raw: "  Coffee ", POS: "NOUN"}})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	occs, _ := c.Doc("d1")
	o := occs[0]
	if o.Raw != "coffee" {
		t.Errorf("Expected normalized raw 'coffee', got %q", o.Raw)
	}
	if o.Stem != "coffee" || o.Lemma != "coffee" {
		t.Errorf("Expected stem/lemma fallback to raw, got %q/%q", o.Stem, o.Lemma)
	}
}

// TestIngestOrdersByPosition verifies occurrences come back in position order
// regardless of input order.
func TestIngestOrdersByPosition(t *testing.T) {
	c := New()
	err := c.Ingest("d1", []Occurrence{occ(2, "c"), occ(0, "a"), occ(1, "b")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	occs, _ := c.Doc("d1")
	for i, want := range []string{"a", "b", "c"} {
		if occs[i].Raw != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, occs[i].Raw)
		}
	}
}

// TestComputeWeights verifies the corpus-wide IDF pass:
// idf = ln(totalDocs/docFreq), weight = tf × idf, per variant.
func TestComputeWeights(t *testing.T) {
	c := New()
	if err := c.Ingest("d1", []Occurrence{occ(0, "apple"), occ(1, "apple"), occ(2, "banana")}); err != nil {
		t.Fatalf("Ingest d1: %v", err)
	}
	if err := c.Ingest("d2", []Occurrence{occ(0, "banana"), occ(1, "cherry")}); err != nil {
		t.Fatalf("Ingest d2: %v", err)
	}

	c.ComputeWeights()

	d1, _ := c.Doc("d1")
	ln2 := math.Log(2)

	// apple: df=1 -> idf=ln(2); tf in d1 = 2.
	if got := d1[0].RawTFIDF; math.Abs(got-2*ln2) > 1e-12 {
		t.Errorf("apple: expected weight %v, got %v", 2*ln2, got)
	}
	// banana: df=2 of 2 docs -> idf=ln(1)=0.
	if got := d1[2].RawTFIDF; got != 0 {
		t.Errorf("banana: expected weight 0, got %v", got)
	}

	d2, _ := c.Doc("d2")
	// cherry: df=1, tf=1 -> ln(2).
	if got := d2[1].RawTFIDF; math.Abs(got-ln2) > 1e-12 {
		t.Errorf("cherry: expected weight %v, got %v", ln2, got)
	}
}

// TestRemove verifies document removal and that DocIDs tracks it.
func TestRemove(t *testing.T) {
	c := New()
	c.Ingest("d1", []Occurrence{occ(0, "a")})
	c.Ingest("d2", []Occurrence{occ(0, "b")})

	c.Remove("d1")
	if c.TotalDocs() != 1 {
		t.Fatalf("Expected 1 document after removal, got %d", c.TotalDocs())
	}
	ids := c.DocIDs()
	if len(ids) != 1 || ids[0] != "d2" {
		t.Errorf("Expected remaining ids [d2], got %v", ids)
	}

	// Removing an unknown id is a no-op.
	c.Remove("ghost")
	if c.TotalDocs() != 1 {
		t.Errorf("Removing unknown id changed the corpus")
	}
}

// TestVariantAccessors verifies Value and Weight dispatch per variant.
func TestVariantAccessors(t *testing.T) {
	o := Occurrence{
		Raw: "running", Stem: "run", Lemma: "run",
		RawTFIDF: 1.0, StemTFIDF: 2.0, LemmaTFIDF: 3.0,
	}

	if o.Value(VariantRaw) != "running" || o.Value(VariantStem) != "run" || o.Value(VariantLemma) != "run" {
		t.Error("Value dispatch wrong")
	}
	if o.Weight(VariantRaw) != 1.0 || o.Weight(VariantStem) != 2.0 || o.Weight(VariantLemma) != 3.0 {
		t.Error("Weight dispatch wrong")
	}

	if Variant("surface").Valid() {
		t.Error("Unknown variant should not validate")
	}
}
