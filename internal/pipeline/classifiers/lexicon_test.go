package classifiers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLexicon(t *testing.T) {
	lex := DefaultLexicon()
	if len(lex.CrisisKeywords) == 0 {
		t.Fatal("embedded lexicon has no crisis keywords")
	}
	if len(lex.HelpSeeking) == 0 {
		t.Fatal("embedded lexicon has no help-seeking terms")
	}
}

func TestLoadLexicon_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := "crisis_keywords:\n  - custom term\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lex.CrisisKeywords) != 1 || lex.CrisisKeywords[0] != "custom term" {
		t.Errorf("crisis keywords = %v, want the override", lex.CrisisKeywords)
	}
	// Omitted lists keep the embedded defaults.
	if len(lex.HelpSeeking) == 0 {
		t.Error("help-seeking terms should fall back to defaults")
	}
}

func TestLoadLexicon_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("crisis_keywords: {not a list"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadLexicon(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}
