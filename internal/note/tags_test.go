package note

import (
	"reflect"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"  Work ", "#work", "Deep   Work"})
	want := []string{"work", "deep_work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestNormalizeTagsDropsEmpties(t *testing.T) {
	got := NormalizeTags([]string{"", "   ", "###", "_", "ok"})
	if !reflect.DeepEqual(got, []string{"ok"}) {
		t.Errorf("got %v", got)
	}
}

func TestNormalizeTagsIdempotent(t *testing.T) {
	inputs := [][]string{
		{"  Work ", "#work", "Deep   Work"},
		{"a_b", "A  B", "mixed_Case Tag"},
		{"#one", "two three", "four"},
	}
	for _, in := range inputs {
		once := NormalizeTags(in)
		twice := NormalizeTags(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for %v: %v != %v", in, once, twice)
		}
	}
}

func TestNormalizeSuggested(t *testing.T) {
	got := NormalizeSuggested([]string{"Deep Work", "ml", "  Go  Lang ", "ai"})
	want := []string{"deep-work", "go-lang"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeSuggested = %v, want %v", got, want)
	}
}
