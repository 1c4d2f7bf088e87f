package textutil_test

import (
	"testing"
	"unicode/utf8"

	"memeshop/internal/textutil"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Cat Meme!! #1":                    "cat-meme-1",
		"  Leading and trailing  ":         "leading-and-trailing",
		"Crème Brûlée - meme on a T-shirt": "creme-brulee-meme-on-a-t-shirt",
		"---":                              "",
		"ALLCAPS123":                       "allcaps123",
		"emoji 😀 inside":                   "emoji-inside",
	}
	for input, want := range cases {
		if got := textutil.Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBaseNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://i.redd.it/abc123.jpg":                  "abc123.jpg",
		"https://preview.redd.it/x1y2.png?width=640&s=z": "x1y2.png",
		"https://example.com/":                          "example.com",
	}
	for input, want := range cases {
		if got := textutil.BaseNameFromURL(input); got != want {
			t.Fatalf("BaseNameFromURL(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := textutil.Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	got := textutil.Truncate("abcdefghij", 5)
	if got != "abcd…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 5 {
		t.Fatalf("expected 5 runes, got %d", n)
	}
}
