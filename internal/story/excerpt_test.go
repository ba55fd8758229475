package story

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDeriveExcerpt_ShortBody(t *testing.T) {
	got := DeriveExcerpt("<h2>Chapter 1</h2><p>The moon   was\nbright.</p>", ExcerptLength)
	if got != "Chapter 1 The moon was bright." {
		t.Errorf("DeriveExcerpt = %q", got)
	}
}

func TestDeriveExcerpt_Empty(t *testing.T) {
	if got := DeriveExcerpt("   ", ExcerptLength); got != "" {
		t.Errorf("DeriveExcerpt = %q, want empty", got)
	}
}

func TestDeriveExcerpt_DropsScript(t *testing.T) {
	got := DeriveExcerpt("<p>Sleep tight</p><script>var x = 1;</script>", ExcerptLength)
	if got != "Sleep tight" {
		t.Errorf("DeriveExcerpt = %q", got)
	}
}

func TestDeriveExcerpt_TruncatesAtWordBoundary(t *testing.T) {
	body := "<p>" + strings.Repeat("sleepy ", 20) + "</p>"
	got := DeriveExcerpt(body, 30)

	if !strings.HasSuffix(got, "…") {
		t.Fatalf("DeriveExcerpt = %q, want ellipsis", got)
	}
	trimmed := strings.TrimSuffix(got, "…")
	if utf8.RuneCountInString(trimmed) > 30 {
		t.Errorf("excerpt too long: %q", got)
	}
	if strings.HasSuffix(trimmed, " ") || !strings.HasSuffix(trimmed, "sleepy") {
		t.Errorf("excerpt should end on a whole word: %q", got)
	}
}

func TestDeriveExcerpt_PlainText(t *testing.T) {
	got := DeriveExcerpt("A cat, a moon and a dream", 7)
	if got != "A cat…" {
		t.Errorf("DeriveExcerpt = %q, want %q", got, "A cat…")
	}
}
