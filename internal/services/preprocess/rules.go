package preprocess

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var embeddedRules []byte

// Rules holds the keyword and pattern lists driving spam and toxicity
// classification.
type Rules struct {
	SpamKeywords  []string `yaml:"spam_keywords"`
	ToxicKeywords []string `yaml:"toxic_keywords"`
	HatePatterns  []string `yaml:"hate_patterns"`
}

// compiledRules is the runtime form with hate patterns pre-compiled.
type compiledRules struct {
	spamKeywords  []string
	toxicKeywords []string
	hatePatterns  []*regexp.Regexp
}

// LoadRules reads classification rules from path, falling back to the
// embedded defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	data := embeddedRules
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
		}
		data = fileData
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return &rules, nil
}

func (r *Rules) compile() (*compiledRules, error) {
	compiled := &compiledRules{
		spamKeywords:  r.SpamKeywords,
		toxicKeywords: r.ToxicKeywords,
	}
	for _, pattern := range r.HatePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid hate pattern %q: %w", pattern, err)
		}
		compiled.hatePatterns = append(compiled.hatePatterns, re)
	}
	return compiled, nil
}
