package classifiers

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon holds the term lists shared by the crisis classifier and the
// moderator's crisis-speech exemption. Terms are matched as substrings of
// sanitized lowercase content.
type Lexicon struct {
	CrisisKeywords []string `yaml:"crisis_keywords"`
	HelpSeeking    []string `yaml:"help_seeking"`
}

// DefaultLexicon returns the compiled-in lexicon. Panics only on a broken
// build (the embedded YAML is validated by tests).
func DefaultLexicon() *Lexicon {
	lex, err := parseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon invalid: %v", err))
	}
	return lex
}

// LoadLexicon reads a lexicon override from a YAML file. Empty lists fall
// back to the embedded defaults so a partial override cannot silently
// disable a classifier.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLexicon: %w", err)
	}
	lex, err := parseLexicon(data)
	if err != nil {
		return nil, fmt.Errorf("LoadLexicon %s: %w", path, err)
	}
	def := DefaultLexicon()
	if len(lex.CrisisKeywords) == 0 {
		lex.CrisisKeywords = def.CrisisKeywords
	}
	if len(lex.HelpSeeking) == 0 {
		lex.HelpSeeking = def.HelpSeeking
	}
	return lex, nil
}

func parseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, err
	}
	return &lex, nil
}
