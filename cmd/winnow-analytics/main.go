package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/cognicore/winnow/internal/docsrc"
	"github.com/cognicore/winnow/pkg/winnow"
	"github.com/cognicore/winnow/pkg/winnow/config"
	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/counts"
	winstore "github.com/cognicore/winnow/pkg/winnow/store"
	"github.com/cognicore/winnow/pkg/winnow/store/memstore"
	sqlitestore "github.com/cognicore/winnow/pkg/winnow/store/sqlite"
)

type report struct {
	Field   string               `json:"field"`
	Variant string               `json:"variant"`
	Failed  []string             `json:"failed_docs,omitempty"`
	Counts  counts.DatasetCounts `json:"counts"`
	TopRows []rowEntry           `json:"top_remaining_rows"`
}

type rowEntry struct {
	Term      string  `json:"term"`
	POS       string  `json:"pos"`
	WordCount int     `json:"word_count"`
	DocCount  int     `json:"doc_count"`
	WordPct   float64 `json:"word_pct"`
}

func main() {
	var (
		input       = flag.String("input", "", "Path to JSONL corpus (required)")
		field       = flag.String("field", "text", "Field key for the ingested documents")
		variant     = flag.String("variant", "raw", "Surface-form variant: raw, stem, or lemma")
		stoplistCfg = flag.String("stoplist", "", "Optional: stoplist YAML file")
		lexiconCfg  = flag.String("lexicon", "", "Optional: lemma lexicon YAML file")
		rulesCfg    = flag.String("rules", "", "Optional: filter-rule list YAML file")
		dbPath      = flag.String("db", "", "Optional: SQLite database path (in-memory store if omitted)")
		workers     = flag.Int("workers", 0, "Tokenization workers (0 = one per CPU core)")
		topN        = flag.Int("top", 20, "Remaining rows to include in the report")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("--input required")
	}

	ctx := context.Background()

	loader := config.Loader{
		StoplistPath: *stoplistCfg,
		LexiconPath:  *lexiconCfg,
		RulesPath:    *rulesCfg,
	}
	components, err := loader.Load()
	if err != nil {
		log.Fatalf("load configs: %v", err)
	}

	var st winstore.Store
	if *dbPath != "" {
		st, err = sqlitestore.Open(ctx, *dbPath)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
	} else {
		st = memstore.New()
	}

	engine := winnow.New(winnow.Options{
		Store:     st,
		Tokenizer: components.Tokenizer,
		Workers:   *workers,
	})
	defer engine.Close()

	docs, err := docsrc.LoadFromJSONL(*input)
	if err != nil {
		log.Fatalf("load docs: %v", err)
	}

	res, err := engine.IngestField(ctx, *field, docs)
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}

	v := corpus.Variant(*variant)
	if v != corpus.VariantRaw {
		if err := engine.SetVariant(ctx, *field, v); err != nil {
			log.Fatalf("set variant: %v", err)
		}
	}

	projected, err := engine.ApplyAll(ctx, *field, components.Rules)
	if err != nil {
		log.Fatalf("apply rules: %v", err)
	}

	table, err := engine.Table(*field)
	if err != nil {
		log.Fatalf("read table: %v", err)
	}

	out := report{
		Field:   *field,
		Variant: *variant,
		Counts:  projected,
	}
	for id := range res.Failed {
		out.Failed = append(out.Failed, id)
	}
	sort.Strings(out.Failed)

	for _, row := range table.Rows {
		if row.Excluded {
			continue
		}
		out.TopRows = append(out.TopRows, rowEntry{
			Term:      row.Term,
			POS:       row.POS,
			WordCount: row.WordCount,
			DocCount:  row.DocCount,
			WordPct:   row.WordPct,
		})
	}
	sort.Slice(out.TopRows, func(i, j int) bool {
		if out.TopRows[i].WordCount != out.TopRows[j].WordCount {
			return out.TopRows[i].WordCount > out.TopRows[j].WordCount
		}
		return out.TopRows[i].Term < out.TopRows[j].Term
	})
	if len(out.TopRows) > *topN {
		out.TopRows = out.TopRows[:*topN]
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("encode report: %v", err)
	}
	fmt.Println(string(encoded))
}
