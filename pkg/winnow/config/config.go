package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/winnow/pkg/winnow/rules"
)

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// ruleFile is the on-disk shape of an ordered rule list.
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Field  string `yaml:"field"`
	Term   string `yaml:"term"`
	POS    string `yaml:"pos"`
	Action string `yaml:"action"`

	Threshold *struct {
		Direction  string  `yaml:"direction"`
		Column     string  `yaml:"column"`
		Comparator string  `yaml:"comparator"`
		Value      float64 `yaml:"value"`
	} `yaml:"threshold"`

	Quantile *struct {
		Direction string  `yaml:"direction"`
		Tail      string  `yaml:"tail"`
		Fraction  float64 `yaml:"fraction"`
	} `yaml:"quantile"`
}

// LoadRules loads an ordered filter-rule list from a YAML file. Omitted
// field/term/pos selectors default to the wildcard. Every rule is validated;
// a bad rule fails the whole load.
func LoadRules(path string) ([]rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	out := make([]rules.Rule, 0, len(file.Rules))
	for i, e := range file.Rules {
		r := rules.Rule{
			Field:  orAny(e.Field),
			Term:   orAny(e.Term),
			POS:    orAny(e.POS),
			Action: rules.Action(e.Action),
		}
		if e.Threshold != nil {
			r.Threshold = &rules.Threshold{
				Direction:  rules.Direction(e.Threshold.Direction),
				Column:     rules.Column(e.Threshold.Column),
				Comparator: rules.Comparator(e.Threshold.Comparator),
				Value:      e.Threshold.Value,
			}
		}
		if e.Quantile != nil {
			r.Quantile = &rules.Quantile{
				Direction: rules.Direction(e.Quantile.Direction),
				Tail:      rules.Tail(e.Quantile.Tail),
				Fraction:  e.Quantile.Fraction,
			}
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", path, i, err)
		}
		out = append(out, r)
	}

	return out, nil
}

func orAny(s string) string {
	if s == "" {
		return rules.Any
	}
	return s
}
