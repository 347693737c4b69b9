package ingest

import (
	"strings"
	"unicode"

	"github.com/cognicore/winnow/pkg/winnow/corpus"
	"github.com/cognicore/winnow/pkg/winnow/lexicon"
)

// Tokenizer produces the ordered occurrence records of one document.
// Real deployments plug in an external NLP tagger here; SimpleTokenizer
// below is the built-in fallback.
type Tokenizer interface {
	Tokenize(docID, text string) ([]corpus.Occurrence, error)
}

// SimpleTokenizer splits text on non-word runes, lower-cases, flags stopwords,
// derives a suffix-stripped stem, and resolves lemmas through an optional
// lexicon. It has no POS model and tags every token "X".
type SimpleTokenizer struct {
	stopwords map[string]struct{}
	lexicon   *lexicon.Lexicon
}

// NewSimpleTokenizer creates a tokenizer with the given stopword list.
func NewSimpleTokenizer(stopwords []string) *SimpleTokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &SimpleTokenizer{stopwords: stops}
}

// SetLexicon assigns a lexicon for lemma resolution.
func (t *SimpleTokenizer) SetLexicon(lex *lexicon.Lexicon) {
	t.lexicon = lex
}

// AddStopword adds a word to the stopword set.
func (t *SimpleTokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// Tokenize splits text into occurrence records. Stopwords are kept and
// flagged, not dropped: downstream filter rules decide their fate.
func (t *SimpleTokenizer) Tokenize(docID, text string) ([]corpus.Occurrence, error) {
	var occs []corpus.Occurrence
	var current strings.Builder

	emit := func() {
		if current.Len() == 0 {
			return
		}
		word := cleanToken(current.String())
		current.Reset()
		if word == "" {
			return
		}
		occs = append(occs, t.occurrence(docID, len(occs), word))
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
		} else {
			emit()
		}
	}
	emit()

	return occs, nil
}

func (t *SimpleTokenizer) occurrence(docID string, pos int, word string) corpus.Occurrence {
	lemma := word
	if t.lexicon != nil {
		lemma = t.lexicon.Lemma(word)
	}
	_, stop := t.stopwords[word]
	return corpus.Occurrence{
		DocID:    docID,
		Position: pos,
		Raw:      word,
		Stem:     stem(word),
		Lemma:    lemma,
		POS:      "X",
		Stopword: stop,
	}
}

// cleanToken strips leading/trailing hyphens and collapses hyphen runs.
func cleanToken(token string) string {
	token = strings.Trim(token, "-")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	return token
}

// stem strips common English inflection suffixes. Deliberately crude: the
// stem variant only needs to fold obvious inflections together, and callers
// wanting real stemming bring their own Tokenizer.
func stem(word string) string {
	for _, suffix := range []string{"ments", "ment", "ingly", "ings", "ing", "edly", "ed", "ies", "ly", "es", "s"} {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}
