package ingest

import (
	"context"
	"runtime"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/progress"
)

// Document is one unit of tokenization work.
type Document struct {
	ID   string
	Text string
}

// Result reports the outcome of a pool run. Failed maps document id to the
// error that stopped that document; other documents proceed unaffected.
type Result struct {
	Ingested int
	Failed   map[string]error

	// DocFreq holds the merged per-shard document-frequency tallies,
	// one map per surface-form variant.
	DocFreq map[corpus.Variant]map[string]int
}

// shardOutput is one worker's partial result: tokenized documents plus the
// shard's document-frequency tallies. Shards are disjoint, so the collector
// merges them additively without synchronization.
type shardOutput struct {
	docs  []tokenizedDoc
	freq  map[corpus.Variant]map[string]int
	fails map[string]error
}

type tokenizedDoc struct {
	id   string
	occs []corpus.Occurrence
}

// Run tokenizes documents across a fixed-size worker pool and collects the
// results into a fresh corpus, including the corpus-wide weight pass.
// workers <= 0 means one worker per CPU core. Per-document tokenizer or
// ingestion failures are recorded in Result.Failed; the run itself only
// fails when the context is cancelled before collection finishes.
func Run(ctx context.Context, tok Tokenizer, docs []Document, workers int, sink progress.Sink) (*corpus.Corpus, Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(docs) && len(docs) > 0 {
		workers = len(docs)
	}
	if sink == nil {
		sink = progress.Noop{}
	}

	res := Result{
		Failed:  make(map[string]error),
		DocFreq: make(map[corpus.Variant]map[string]int),
	}
	for _, v := range []corpus.Variant{corpus.VariantRaw, corpus.VariantStem, corpus.VariantLemma} {
		res.DocFreq[v] = make(map[string]int)
	}

	c := corpus.New()
	if len(docs) == 0 {
		return c, res, nil
	}

	feed := make(chan Document)
	go func() {
		defer close(feed)
		for _, d := range docs {
			select {
			case <-ctx.Done():
				return
			case feed <- d:
			}
		}
	}()

	outputs := make(chan shardOutput, workers)
	for i := 0; i < workers; i++ {
		go func() {
			out := shardOutput{
				freq:  make(map[corpus.Variant]map[string]int),
				fails: make(map[string]error),
			}
			for _, v := range []corpus.Variant{corpus.VariantRaw, corpus.VariantStem, corpus.VariantLemma} {
				out.freq[v] = make(map[string]int)
			}
			for d := range feed {
				occs, err := tok.Tokenize(d.ID, d.Text)
				if err != nil {
					out.fails[d.ID] = err
					continue
				}
				out.docs = append(out.docs, tokenizedDoc{id: d.ID, occs: occs})
				tallyDoc(out.freq, occs)
			}
			outputs <- out
		}()
	}

	// Single collecting goroutine: sequential merge of disjoint shards.
	done := 0
	for i := 0; i < workers; i++ {
		select {
		case <-ctx.Done():
			return nil, res, ctx.Err()
		case out := <-outputs:
			for _, d := range out.docs {
				if err := c.Ingest(d.id, d.occs); err != nil {
					res.Failed[d.id] = err
					continue
				}
				res.Ingested++
				done++
				sink.Report(done)
			}
			for id, err := range out.fails {
				res.Failed[id] = err
			}
			mergeFreq(res.DocFreq, out.freq)
		}
	}

	c.ComputeWeights()
	return c, res, nil
}

// tallyDoc counts each distinct term of a document once per variant.
func tallyDoc(freq map[corpus.Variant]map[string]int, occs []corpus.Occurrence) {
	for v, tally := range freq {
		seen := make(map[string]struct{}, len(occs))
		for _, o := range occs {
			term := o.Value(v)
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			tally[term]++
		}
	}
}

func mergeFreq(dst, src map[corpus.Variant]map[string]int) {
	for v, tally := range src {
		for term, n := range tally {
			dst[v][term] += n
		}
	}
}
