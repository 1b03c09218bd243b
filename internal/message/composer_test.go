package message

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rewired-gh/forecastbot/internal/models"
)

func TestFormatChange(t *testing.T) {
	tests := []struct {
		change models.OptionChange
		want   string
	}{
		{models.OptionChange{Name: "A", Probability: 0.90, Delta: 0.50}, "A: 90.0% (+50.0%)"},
		{models.OptionChange{Name: "B", Probability: 0.10, Delta: -0.50}, "B: 10.0% (-50.0%)"},
		{models.OptionChange{Name: "C", Probability: 0.5, Delta: 0}, "C: 50.0% (0.0%)"},
		{models.OptionChange{Name: "39.2% or higher", Probability: 0.894231, Delta: 0.344681}, "39.2% or higher: 89.4% (+34.5%)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatChange(tt.change); got != tt.want {
				t.Errorf("FormatChange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompose_FitsWithoutTruncation(t *testing.T) {
	c := NewComposer(0, "")
	changes := []models.OptionChange{
		{Name: "A", Probability: 0.90, Delta: 0.50},
		{Name: "B", Probability: 0.10, Delta: -0.50},
	}

	got := c.Compose("Will it happen?", "predictit-8053", changes)
	want := "Will it happen?\nA: 90.0% (+50.0%)\nB: 10.0% (-50.0%)\nhttps://metaforecast.org/questions/predictit-8053"
	if got != want {
		t.Errorf("Compose() =\n%q\nwant\n%q", got, want)
	}
}

func TestCompose_TruncatesBodyToExactLimit(t *testing.T) {
	c := NewComposer(280, DefaultPermalinkBase)
	changes := []models.OptionChange{{Name: "A", Probability: 0.90, Delta: 0.50}}
	link := "\n" + c.Permalink("q1")
	line := "\n" + FormatChange(changes[0])

	// Title sized so the untruncated text is exactly 300 characters.
	title := strings.Repeat("x", 300-len(link)-len(line))
	untruncated := title + line + link
	if utf8.RuneCountInString(untruncated) != 300 {
		t.Fatalf("test setup: untruncated length %d", utf8.RuneCountInString(untruncated))
	}

	got := c.Compose(title, "q1", changes)

	if n := utf8.RuneCountInString(got); n != 280 {
		t.Errorf("length = %d, want 280", n)
	}
	if !strings.HasSuffix(got, link) {
		t.Errorf("permalink missing or altered: %q", got)
	}
	body := strings.TrimSuffix(got, link)
	if !strings.HasSuffix(body, "…") {
		t.Errorf("body %q does not end with truncation marker", body)
	}
	if strings.Count(got, "…") != 1 {
		t.Errorf("expected exactly one marker, got %d", strings.Count(got, "…"))
	}
	prefix := strings.TrimSuffix(body, "…")
	if !strings.HasPrefix(untruncated, prefix) {
		t.Errorf("truncated body is not a prefix of the original body")
	}
}

func TestCompose_ExactlyAtLimitIsNotTruncated(t *testing.T) {
	c := NewComposer(280, DefaultPermalinkBase)
	changes := []models.OptionChange{{Name: "A", Probability: 0.90, Delta: 0.50}}
	link := "\n" + c.Permalink("q1")
	line := "\n" + FormatChange(changes[0])
	title := strings.Repeat("y", 280-len(link)-len(line))

	got := c.Compose(title, "q1", changes)
	if got != title+line+link {
		t.Errorf("text at exactly the limit was modified: %q", got)
	}
}

func TestCompose_CountsCharactersNotBytes(t *testing.T) {
	c := NewComposer(60, "https://x.test/")
	changes := []models.OptionChange{{Name: "é", Probability: 0.5, Delta: 0.1}}

	got := c.Compose(strings.Repeat("ü", 100), "id", changes)

	if n := utf8.RuneCountInString(got); n != 60 {
		t.Errorf("rune length = %d, want 60", n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte character")
	}
	if !strings.HasSuffix(got, "\nhttps://x.test/id") {
		t.Errorf("permalink missing: %q", got)
	}
}

func TestCompose_NeverExceedsLimit(t *testing.T) {
	c := NewComposer(280, DefaultPermalinkBase)
	var changes []models.OptionChange
	for i := 0; i < 40; i++ {
		changes = append(changes, models.OptionChange{Name: strings.Repeat("o", i), Probability: 0.5, Delta: -0.25})
	}
	for n := 0; n < 400; n += 37 {
		got := c.Compose(strings.Repeat("t", n), "metaculus-123", changes[:n%len(changes)+1])
		if utf8.RuneCountInString(got) > 280 {
			t.Fatalf("title length %d: composed %d characters", n, utf8.RuneCountInString(got))
		}
		if !strings.HasSuffix(got, "\n"+c.Permalink("metaculus-123")) {
			t.Fatalf("title length %d: permalink missing", n)
		}
	}
}

func TestCompose_SmallestLimitKeepsOnlyMarkerAndPermalink(t *testing.T) {
	// "\nhttps://x.test/q1" is 18 runes; the marker takes the last one.
	c := NewComposer(19, "https://x.test/")
	changes := []models.OptionChange{{Name: "A", Probability: 0.9, Delta: 0.5}}

	got := c.Compose("Title", "q1", changes)

	if got != "…\nhttps://x.test/q1" {
		t.Errorf("Compose() = %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 19 {
		t.Errorf("rune length = %d, want 19", n)
	}
}
