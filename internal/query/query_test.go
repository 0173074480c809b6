package query

import (
	"math"
	"strings"
	"testing"
)

func TestPreprocessExpandsAbbreviations(t *testing.T) {
	p := Preprocess("ml")
	if p.FTSQuery != "ml" {
		t.Errorf("FTSQuery = %q, want verbatim %q", p.FTSQuery, "ml")
	}
	if p.Normalized != "machine learning" {
		t.Errorf("Normalized = %q", p.Normalized)
	}
}

func TestPreprocessKeepsUnknownTokens(t *testing.T) {
	p := Preprocess("API design notes")
	if p.Normalized != "application programming interface design notes" {
		t.Errorf("Normalized = %q", p.Normalized)
	}
	if p.FTSQuery != "API design notes" {
		t.Errorf("FTSQuery = %q", p.FTSQuery)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	queries := []string{
		"", "x", "kubernetes", "two words", "one two three four",
		"one two three four five", "ml", "a much longer query about several distinct things",
	}
	for _, q := range queries {
		p := Preprocess(q)
		if sum := p.SemanticWeight + p.BM25Weight; math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("weights for %q sum to %v", q, sum)
		}
	}
}

func TestWeightBands(t *testing.T) {
	cases := []struct {
		query    string
		semantic float64
	}{
		{"", 0.0},
		{"cat", 0.0},               // single short token, pure lexical
		{"kubernetes", 0.2},        // single long token
		{"deep work", 0.6},         // balanced band
		{"a b c d", 0.6},           // top of the balanced band
		{"a b c d e", 0.8},         // semantic-dominant
		{"ml", 0.6},                // expands to two tokens
	}
	for _, c := range cases {
		p := Preprocess(c.query)
		if p.SemanticWeight != c.semantic {
			t.Errorf("Preprocess(%q).SemanticWeight = %v, want %v", c.query, p.SemanticWeight, c.semantic)
		}
	}
}

func TestSingleShortTokenIsPureLexical(t *testing.T) {
	p := Preprocess("zig")
	if p.BM25Weight != 1.0 {
		t.Errorf("BM25Weight = %v, want 1.0", p.BM25Weight)
	}
}

func TestPreprocessTrimsInput(t *testing.T) {
	p := Preprocess("   spaced   out   ")
	if p.FTSQuery != "spaced   out" {
		t.Errorf("FTSQuery = %q", p.FTSQuery)
	}
	if strings.Contains(p.Normalized, "  ") {
		t.Errorf("Normalized not collapsed: %q", p.Normalized)
	}
}
