package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/internalerr"
	"github.com/cognicore/winnow/pkg/winnow/rules"
	"github.com/cognicore/winnow/pkg/winnow/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and initializes the
// schema if needed.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS doc_tokens (
	field TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	raw TEXT NOT NULL,
	stem TEXT NOT NULL,
	lemma TEXT NOT NULL,
	pos TEXT NOT NULL,
	stopword INTEGER NOT NULL DEFAULT 0,
	raw_tfidf REAL NOT NULL DEFAULT 0,
	stem_tfidf REAL NOT NULL DEFAULT 0,
	lemma_tfidf REAL NOT NULL DEFAULT 0,
	PRIMARY KEY(field, doc_id, position)
);

CREATE INDEX IF NOT EXISTS idx_doc_tokens_field ON doc_tokens(field);

CREATE TABLE IF NOT EXISTS filter_rules (
	field TEXT NOT NULL,
	seq INTEGER NOT NULL,
	field_selector TEXT NOT NULL,
	term_selector TEXT NOT NULL,
	pos_selector TEXT NOT NULL,
	action TEXT NOT NULL,
	params TEXT,
	PRIMARY KEY(field, seq)
);

CREATE TABLE IF NOT EXISTS exclusions (
	field TEXT NOT NULL,
	variant TEXT NOT NULL,
	term TEXT NOT NULL,
	pos TEXT NOT NULL,
	stopword INTEGER NOT NULL,
	excluded INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exclusions_field ON exclusions(field, variant);

CREATE TABLE IF NOT EXISTS filter_runs (
	id TEXT PRIMARY KEY,
	field TEXT NOT NULL,
	variant TEXT NOT NULL,
	rule_count INTEGER NOT NULL,
	counts_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertDocTokens replaces a document's occurrence rows inside one transaction.
func (s *sqliteStore) UpsertDocTokens(ctx context.Context, field, docID string, occs []corpus.Occurrence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM doc_tokens WHERE field = ? AND doc_id = ?", field, docID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO doc_tokens
(field, doc_id, position, raw, stem, lemma, pos, stopword, raw_tfidf, stem_tfidf, lemma_tfidf)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range occs {
		if _, err := stmt.ExecContext(ctx, field, docID, o.Position,
			o.Raw, o.Stem, o.Lemma, o.POS, boolToInt(o.Stopword),
			o.RawTFIDF, o.StemTFIDF, o.LemmaTFIDF); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteDoc removes a document's occurrence rows.
func (s *sqliteStore) DeleteDoc(ctx context.Context, field, docID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM doc_tokens WHERE field = ? AND doc_id = ?", field, docID)
	return err
}

// LoadField reconstructs a field's corpus from its persisted occurrences.
func (s *sqliteStore) LoadField(ctx context.Context, field string) (*corpus.Corpus, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT doc_id, position, raw, stem, lemma, pos, stopword, raw_tfidf, stem_tfidf, lemma_tfidf
FROM doc_tokens WHERE field = ? ORDER BY doc_id, position`, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDoc := make(map[string][]corpus.Occurrence)
	var order []string
	for rows.Next() {
		var o corpus.Occurrence
		var docID string
		var stop int
		if err := rows.Scan(&docID, &o.Position, &o.Raw, &o.Stem, &o.Lemma,
			&o.POS, &stop, &o.RawTFIDF, &o.StemTFIDF, &o.LemmaTFIDF); err != nil {
			return nil, err
		}
		o.Stopword = stop != 0
		if _, ok := byDoc[docID]; !ok {
			order = append(order, docID)
		}
		byDoc[docID] = append(byDoc[docID], o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c := corpus.New()
	for _, docID := range order {
		if err := c.Ingest(docID, byDoc[docID]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Fields lists the field keys with persisted tokens.
func (s *sqliteStore) Fields(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT field FROM doc_tokens ORDER BY field")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ruleParams is the JSON shape of a rule's threshold/quantile parameters.
type ruleParams struct {
	Threshold *rules.Threshold `json:"threshold,omitempty"`
	Quantile  *rules.Quantile  `json:"quantile,omitempty"`
}

// SaveRules replaces a field's ordered rule list inside one transaction.
func (s *sqliteStore) SaveRules(ctx context.Context, field string, list []rules.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM filter_rules WHERE field = ?", field); err != nil {
		return err
	}
	for seq, r := range list {
		if err := insertRule(ctx, tx, field, seq, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendRule adds one rule at the end of a field's list.
func (s *sqliteStore) AppendRule(ctx context.Context, field string, r rules.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq) + 1, 0) FROM filter_rules WHERE field = ?", field).Scan(&next); err != nil {
		return err
	}
	if err := insertRule(ctx, tx, field, next, r); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRule(ctx context.Context, tx *sql.Tx, field string, seq int, r rules.Rule) error {
	params, err := json.Marshal(ruleParams{Threshold: r.Threshold, Quantile: r.Quantile})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO filter_rules (field, seq, field_selector, term_selector, pos_selector, action, params)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		field, seq, r.Field, r.Term, r.POS, string(r.Action), string(params))
	return err
}

// LoadRules returns a field's rule list in insertion order.
func (s *sqliteStore) LoadRules(ctx context.Context, field string) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT field_selector, term_selector, pos_selector, action, params
FROM filter_rules WHERE field = ? ORDER BY seq`, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var r rules.Rule
		var action, params string
		if err := rows.Scan(&r.Field, &r.Term, &r.POS, &action, &params); err != nil {
			return nil, err
		}
		r.Action = rules.Action(action)
		if params != "" {
			var p ruleParams
			if err := json.Unmarshal([]byte(params), &p); err != nil {
				return nil, fmt.Errorf("rule params for field %q: %w", field, err)
			}
			r.Threshold = p.Threshold
			r.Quantile = p.Quantile
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveExclusions replaces the field+variant flag set in one transaction, so
// other readers never observe a partial update.
func (s *sqliteStore) SaveExclusions(ctx context.Context, field string, variant corpus.Variant, flags []store.Exclusion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM exclusions WHERE field = ? AND variant = ?", field, string(variant)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO exclusions (field, variant, term, pos, stopword, excluded)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range flags {
		if _, err := stmt.ExecContext(ctx, field, string(variant),
			f.Term, f.POS, boolToInt(f.Stopword), boolToInt(f.Excluded)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadExclusions returns the persisted flags of one field+variant.
func (s *sqliteStore) LoadExclusions(ctx context.Context, field string, variant corpus.Variant) ([]store.Exclusion, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT term, pos, stopword, excluded FROM exclusions
WHERE field = ? AND variant = ? ORDER BY term, pos, stopword, excluded`, field, string(variant))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Exclusion
	for rows.Next() {
		var e store.Exclusion
		var stop, exc int
		if err := rows.Scan(&e.Term, &e.POS, &stop, &exc); err != nil {
			return nil, err
		}
		e.Stopword = stop != 0
		e.Excluded = exc != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordRun appends one filter-run audit record.
func (s *sqliteStore) RecordRun(ctx context.Context, run store.Run) error {
	if run.ID == "" {
		return fmt.Errorf("record run: missing id: %w", internalerr.ErrStoreUnavailable)
	}
	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO filter_runs (id, field, variant, rule_count, counts_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Field, string(run.Variant), run.RuleCount,
		string(countsJSON), run.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Runs returns a field's audit records, oldest first. ULIDs sort
// lexicographically by creation time, so ordering by id is chronological.
func (s *sqliteStore) Runs(ctx context.Context, field string) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, field, variant, rule_count, counts_json, created_at
FROM filter_runs WHERE field = ? ORDER BY id`, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		var run store.Run
		var variant, countsJSON, createdAt string
		if err := rows.Scan(&run.ID, &run.Field, &variant, &run.RuleCount, &countsJSON, &createdAt); err != nil {
			return nil, err
		}
		run.Variant = corpus.Variant(variant)
		if err := json.Unmarshal([]byte(countsJSON), &run.Counts); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			run.CreatedAt = ts
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
