package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/counts"
	"github.com/cognicore/winnow/pkg/winnow/rules"
	"github.com/cognicore/winnow/pkg/winnow/store"
)

// TestSchemaCreationIdempotent tests that running initSchema multiple times is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}

	expected := 4 // doc_tokens, filter_rules, exclusions, filter_runs
	if count != expected {
		t.Errorf("Expected %d tables, got %d", expected, count)
	}
}

// TestTokenPersistence tests occurrence roundtrip and replace-on-upsert with
// a real SQLite file.
func TestTokenPersistence(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	occs := []corpus.Occurrence{
		{Position: 0, Raw: "dark", Stem: "dark", Lemma: "dark", POS: "ADJ", RawTFIDF: 0.69},
		{Position: 1, Raw: "roast", Stem: "roast", Lemma: "roast", POS: "NOUN", Stopword: false, RawTFIDF: 0.41},
	}
	if err := st.UpsertDocTokens(ctx, "body", "d1", occs); err != nil {
		t.Fatalf("UpsertDocTokens: %v", err)
	}

	c, err := st.LoadField(ctx, "body")
	if err != nil {
		t.Fatalf("LoadField: %v", err)
	}
	got, ok := c.Doc("d1")
	if !ok || len(got) != 2 {
		t.Fatalf("Expected 2 persisted occurrences, got %d (ok=%v)", len(got), ok)
	}
	if got[0].Raw != "dark" || got[0].POS != "ADJ" || got[0].RawTFIDF != 0.69 {
		t.Errorf("First occurrence mismatched: %+v", got[0])
	}

	// Replace.
	if err := st.UpsertDocTokens(ctx, "body", "d1", occs[:1]); err != nil {
		t.Fatalf("UpsertDocTokens replace: %v", err)
	}
	c, _ = st.LoadField(ctx, "body")
	got, _ = c.Doc("d1")
	if len(got) != 1 {
		t.Errorf("Expected replacement to leave 1 occurrence, got %d", len(got))
	}
}

// TestRulePersistence tests rule-list save/append/load across a reopen.
func TestRulePersistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	list := []rules.Rule{
		{Field: rules.Any, Term: rules.Any, POS: rules.Any, Action: rules.ActionRemoveStopwords},
		{Field: "body", Term: "deleted", POS: rules.Any, Action: rules.ActionRemove},
		{Field: rules.Any, Term: rules.Any, POS: rules.Any, Action: rules.ActionThreshold,
			Threshold: &rules.Threshold{Direction: rules.DirectionRemove, Column: rules.ColumnDocPct, Comparator: rules.CmpGT, Value: 90}},
	}
	if err := st.SaveRules(ctx, "body", list); err != nil {
		t.Fatalf("SaveRules: %v", err)
	}
	appended := rules.Rule{Field: rules.Any, Term: rules.Any, POS: rules.Any, Action: rules.ActionQuantile,
		Quantile: &rules.Quantile{Direction: rules.DirectionInclude, Tail: rules.TailUpper, Fraction: 0.05}}
	if err := st.AppendRule(ctx, "body", appended); err != nil {
		t.Fatalf("AppendRule: %v", err)
	}
	st.Close()

	// Reopen and verify order and parameters survive.
	st2, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer st2.Close()

	got, err := st2.LoadRules(ctx, "body")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 rules, got %d", len(got))
	}
	if got[2].Threshold == nil || got[2].Threshold.Column != rules.ColumnDocPct {
		t.Errorf("Threshold params lost: %+v", got[2])
	}
	if got[3].Quantile == nil || got[3].Quantile.Fraction != 0.05 {
		t.Errorf("Quantile params lost: %+v", got[3])
	}
}

// TestExclusionBulkUpdate tests that SaveExclusions replaces the flag set
// wholesale for one field+variant and leaves others alone.
func TestExclusionBulkUpdate(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	stemFlags := []store.Exclusion{{Term: "keep", POS: "X", Excluded: false}}
	if err := st.SaveExclusions(ctx, "body", corpus.VariantStem, stemFlags); err != nil {
		t.Fatalf("SaveExclusions stem: %v", err)
	}

	if err := st.SaveExclusions(ctx, "body", corpus.VariantRaw, []store.Exclusion{
		{Term: "a", POS: "X", Excluded: true},
	}); err != nil {
		t.Fatalf("SaveExclusions raw: %v", err)
	}
	if err := st.SaveExclusions(ctx, "body", corpus.VariantRaw, []store.Exclusion{
		{Term: "b", POS: "X", Excluded: true},
		{Term: "c", POS: "Y", Excluded: false},
	}); err != nil {
		t.Fatalf("SaveExclusions raw replace: %v", err)
	}

	got, err := st.LoadExclusions(ctx, "body", corpus.VariantRaw)
	if err != nil {
		t.Fatalf("LoadExclusions: %v", err)
	}
	if len(got) != 2 || got[0].Term != "b" || got[1].Term != "c" {
		t.Errorf("Expected replaced raw flags [b c], got %+v", got)
	}

	stemGot, _ := st.LoadExclusions(ctx, "body", corpus.VariantStem)
	if len(stemGot) != 1 || stemGot[0].Term != "keep" {
		t.Errorf("Stem-variant flags should be untouched, got %+v", stemGot)
	}
}

// TestRunAuditTrail tests run recording and chronological retrieval.
func TestRunAuditTrail(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"01AAAAAAAAAAAAAAAAAAAAAAAA", "01BBBBBBBBBBBBBBBBBBBBBBBB"} {
		run := store.Run{
			ID:        id,
			Field:     "body",
			Variant:   corpus.VariantLemma,
			RuleCount: i + 1,
			Counts:    counts.DatasetCounts{TotalDocs: 10, TotalDocsRemaining: 10 - i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun %s: %v", id, err)
		}
	}

	runs, err := st.Runs(ctx, "body")
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].RuleCount != 1 || runs[1].RuleCount != 2 {
		t.Errorf("Runs out of order: %+v", runs)
	}
	if runs[1].Counts.TotalDocsRemaining != 9 {
		t.Errorf("Counts JSON roundtrip failed: %+v", runs[1].Counts)
	}
	if !runs[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt roundtrip failed: %v", runs[0].CreatedAt)
	}

	// Missing id is rejected.
	if err := st.RecordRun(ctx, store.Run{Field: "body"}); err == nil {
		t.Error("Expected error recording a run without an id")
	}
}
