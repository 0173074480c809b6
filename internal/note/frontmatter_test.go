package note

import (
	"reflect"
	"strings"
	"testing"
)

func TestSerializeFrontmatterExactLines(t *testing.T) {
	m := Metadata{
		ID:        "abc",
		CreatedAt: "2025-01-01T00:00:00.000Z",
		UpdatedAt: "2025-01-01T00:00:00.000Z",
		Tags:      []string{"work"},
	}
	got := SerializeFrontmatter(m)
	want := "---\n" +
		"id: \"abc\"\n" +
		"created_at: \"2025-01-01T00:00:00.000Z\"\n" +
		"updated_at: \"2025-01-01T00:00:00.000Z\"\n" +
		"banner_image_url: null\n" +
		"tags: [\"work\"]\n" +
		"---\n\n"
	if got != want {
		t.Errorf("serialize mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFrontmatterRoundTrip(t *testing.T) {
	banner := "https://example.com/img.png"
	cases := []Metadata{
		{ID: "a1", CreatedAt: "2025-01-01T00:00:00.000Z", UpdatedAt: "2025-06-01T12:30:00.000Z", Tags: []string{"work", "deep_work"}},
		{ID: "b2", CreatedAt: "2025-02-02T00:00:00.000Z", UpdatedAt: "2025-02-02T00:00:00.000Z", BannerImageURL: &banner, Tags: []string{}},
		{ID: `has"quote`, CreatedAt: "2025-03-03T00:00:00.000Z", UpdatedAt: "2025-03-03T00:00:00.000Z", Tags: []string{`esc\aped`}},
	}
	for _, m := range cases {
		parsed, body := ParseFrontmatter(SerializeFrontmatter(m) + "body here")
		if body != "body here" {
			t.Errorf("body = %q", body)
		}
		if parsed.ID != m.ID || parsed.CreatedAt != m.CreatedAt || parsed.UpdatedAt != m.UpdatedAt {
			t.Errorf("identity mismatch: got %+v want %+v", parsed, m)
		}
		switch {
		case m.BannerImageURL == nil && parsed.BannerImageURL != nil:
			t.Errorf("banner should be nil, got %q", *parsed.BannerImageURL)
		case m.BannerImageURL != nil && (parsed.BannerImageURL == nil || *parsed.BannerImageURL != *m.BannerImageURL):
			t.Errorf("banner mismatch: %+v", parsed.BannerImageURL)
		}
		gotTags := parsed.Tags
		if gotTags == nil {
			gotTags = []string{}
		}
		wantTags := m.Tags
		if !reflect.DeepEqual(gotTags, wantTags) {
			t.Errorf("tags = %v, want %v", gotTags, wantTags)
		}
	}
}

func TestParseFrontmatterMissingHeader(t *testing.T) {
	text := "just a plain file\nwith two lines"
	m, body := ParseFrontmatter(text)
	if m.ID != "" || body != text {
		t.Errorf("expected whole text as body, got meta=%+v body=%q", m, body)
	}
}

func TestParseFrontmatterUnterminatedHeader(t *testing.T) {
	text := "---\nid: \"abc\"\nnever closed"
	m, body := ParseFrontmatter(text)
	if m.ID != "" {
		t.Errorf("unterminated header must yield no metadata, got %+v", m)
	}
	if body != text {
		t.Errorf("body = %q", body)
	}
}

func TestParseFrontmatterIgnoresJunkLines(t *testing.T) {
	text := "---\n" +
		"id: \"x\"\n" +
		"no colon here\n" +
		"mystery_key: \"v\"\n" +
		"---\n\nbody"
	m, body := ParseFrontmatter(text)
	if m.ID != "x" || body != "body" {
		t.Errorf("got meta=%+v body=%q", m, body)
	}
}

func TestParseTagArrayFallback(t *testing.T) {
	cases := []struct {
		value string
		want  []string
	}{
		{`["work","home"]`, []string{"work", "home"}},
		{`[work, home]`, []string{"work", "home"}},
		{`['a', "b"]`, []string{"a", "b"}},
		{`[]`, []string{}},
		{`garbage`, nil},
		{`[unclosed`, nil},
		{`not, an, array`, nil},
	}
	for _, c := range cases {
		if got := parseTagArray(c.value); !reflect.DeepEqual(got, c.want) {
			t.Errorf("parseTagArray(%q) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestEncodeDecodeFile(t *testing.T) {
	n := Note{
		Meta:  Metadata{ID: "n1", CreatedAt: "2025-01-01T00:00:00.000Z", UpdatedAt: "2025-01-01T00:00:00.000Z", Tags: []string{"work"}},
		Title: "My Note",
		Body:  "First paragraph.\n\nSecond paragraph.",
	}
	encoded := EncodeFile(n)
	if !strings.Contains(encoded, "# My Note\n\nFirst paragraph.") {
		t.Fatalf("encoded file malformed:\n%s", encoded)
	}

	back := DecodeFile(encoded)
	if back.Meta.ID != "n1" || back.Title != "My Note" || back.Body != n.Body {
		t.Errorf("decode mismatch: %+v", back)
	}
}

func TestEncodeFileEmptyBody(t *testing.T) {
	n := Note{Meta: Metadata{ID: "e"}, Title: "Empty"}
	encoded := EncodeFile(n)
	if !strings.HasSuffix(encoded, "# Empty\n") {
		t.Errorf("empty-body file must end with the heading line:\n%q", encoded)
	}
}

func TestDecodeFileNoTitleHeading(t *testing.T) {
	back := DecodeFile("no frontmatter, no heading")
	if back.Title != "" || back.Body != "no frontmatter, no heading" {
		t.Errorf("got %+v", back)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"## Sneaky":       "Sneaky",
		"two\nlines":      "two lines",
		"  padded  ":      "padded",
		"#":               "",
		"plain":           "plain",
		"crlf\r\ntitle":   "crlf  title",
	}
	for in, want := range cases {
		if got := SanitizeTitle(in); got != want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
