package config

import (
	"fmt"

	"github.com/cognicore/winnow/pkg/winnow/ingest"
	"github.com/cognicore/winnow/pkg/winnow/lexicon"
	"github.com/cognicore/winnow/pkg/winnow/rules"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	StoplistPath string
	LexiconPath  string
	RulesPath    string
}

// Components holds all loaded configuration components
type Components struct {
	Tokenizer *ingest.SimpleTokenizer
	Lexicon   *lexicon.Lexicon
	Rules     []rules.Rule
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.StoplistPath != "" {
		stoplist, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Tokenizer = ingest.NewSimpleTokenizer(stoplist.Terms)
	} else {
		comp.Tokenizer = ingest.NewSimpleTokenizer(nil)
	}

	if l.LexiconPath != "" {
		lex, err := lexicon.LoadFromYAML(l.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		comp.Lexicon = lex
		comp.Tokenizer.SetLexicon(lex)
	}

	if l.RulesPath != "" {
		list, err := LoadRules(l.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		comp.Rules = list
	}

	return comp, nil
}
