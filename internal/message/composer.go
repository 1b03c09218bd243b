// Package message renders detected option changes into a length-bounded post.
package message

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rewired-gh/forecastbot/internal/models"
)

const (
	// DefaultMaxLength is the platform's post limit in characters.
	DefaultMaxLength = 280
	// DefaultPermalinkBase is prefixed to a question ID to build its permalink.
	DefaultPermalinkBase = "https://metaforecast.org/questions/"

	truncationMarker = "…"
)

// Composer builds post text for a question.
type Composer struct {
	MaxLength     int
	PermalinkBase string
}

// NewComposer returns a Composer, substituting defaults for zero values.
func NewComposer(maxLength int, permalinkBase string) *Composer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if permalinkBase == "" {
		permalinkBase = DefaultPermalinkBase
	}
	return &Composer{MaxLength: maxLength, PermalinkBase: permalinkBase}
}

// Permalink returns the question's permalink.
func (c *Composer) Permalink(id string) string {
	return c.PermalinkBase + id
}

// Compose renders the title, one line per change in the given order, and the
// permalink as the last line. When the result would exceed MaxLength
// characters, the body is cut and marked with "…" so that the whole text is
// exactly MaxLength; the permalink itself is never shortened. MaxLength must
// leave room for the permalink line plus the marker, otherwise the result is
// the marker and the permalink line alone and exceeds MaxLength.
func (c *Composer) Compose(title, id string, changes []models.OptionChange) string {
	var b strings.Builder
	b.WriteString(title)
	for _, ch := range changes {
		b.WriteByte('\n')
		b.WriteString(FormatChange(ch))
	}
	body := b.String()
	link := "\n" + c.Permalink(id)

	bodyLen := utf8.RuneCountInString(body)
	linkLen := utf8.RuneCountInString(link)
	if bodyLen+linkLen > c.MaxLength {
		keep := c.MaxLength - linkLen - utf8.RuneCountInString(truncationMarker)
		body = prefixRunes(body, keep) + truncationMarker
	}
	return body + link
}

// FormatChange renders a change as "name: 12.3% (+4.5%)". A positive delta
// gets an explicit "+"; zero and negative deltas carry no extra sign.
func FormatChange(ch models.OptionChange) string {
	sign := ""
	if ch.Delta > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s: %.1f%% (%s%.1f%%)", ch.Name, 100.0*ch.Probability, sign, 100.0*ch.Delta)
}

func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
