// Package normalize holds the pure text transformations used by the
// WordPress sync pipeline: tag stripping, entity decoding, title
// normalization and timestamp conversion. Nothing here performs I/O.
package normalize

import (
	"regexp"
	"strings"
	"time"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	titleJunkRe  = regexp.MustCompile(`[^\p{L}\p{N}\s'-]+`)
)

// entityReplacer maps the named and numeric entities WordPress content
// actually uses onto plain-text equivalents. Anything not listed passes
// through unchanged.
var entityReplacer = strings.NewReplacer(
	"&#8216;", "'",
	"&#8217;", "'",
	"&lsquo;", "'",
	"&rsquo;", "'",
	"&#8220;", `"`,
	"&#8221;", `"`,
	"&ldquo;", `"`,
	"&rdquo;", `"`,
	"&#8211;", "-",
	"&#8212;", "-",
	"&ndash;", "-",
	"&mdash;", "-",
	"&#8230;", "...",
	"&hellip;", "...",
	"&#038;", "&",
	"&#38;", "&",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&#039;", "'",
	"&#39;", "'",
	"&apos;", "'",
	"&quot;", `"`,
	"&#160;", " ",
	"&nbsp;", " ",
)

// DecodeHTMLEntities replaces a fixed table of HTML entities with their
// plain-text equivalents. Unknown entities are left as-is.
func DecodeHTMLEntities(s string) string {
	return entityReplacer.Replace(s)
}

// StripHTMLTags removes script and style blocks, then every remaining
// tag, collapses whitespace runs to single spaces and trims. Malformed
// markup is removed best-effort; the result never contains angle
// brackets.
func StripHTMLTags(html string) string {
	s := scriptRe.ReplaceAllString(html, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "<", " ")
	s = strings.ReplaceAll(s, ">", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// WordCount counts whitespace-separated tokens. Empty input counts 0.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// NormalizeTitle produces the comparison form of a title: entities
// decoded, lowercased, quote and dash variants unified, punctuation
// stripped except apostrophes and hyphens, whitespace collapsed. The
// result is never stored, only compared.
func NormalizeTitle(title string) string {
	s := DecodeHTMLEntities(title)
	s = strings.ToLower(s)
	s = strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
		"–", "-", "—", "-",
	).Replace(s)
	s = titleJunkRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseExternalTime parses an ISO-ish timestamp. Layouts without a zone
// are interpreted in loc, which is how WordPress reports site-local
// times.
func ParseExternalTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		var t time.Time
		var err error
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// LocalDateString converts an external timestamp to a YYYY-MM-DD
// calendar date in loc. On parse failure it falls back to the current
// date and returns the parse error alongside it, so callers can record
// the degraded-mode warning instead of failing the item.
func LocalDateString(s string, loc *time.Location) (string, error) {
	t, err := ParseExternalTime(s, loc)
	if err != nil {
		return time.Now().In(loc).Format("2006-01-02"), err
	}
	return t.In(loc).Format("2006-01-02"), nil
}

// Excerpt strips markup and truncates on a word boundary.
func Excerpt(html string, maxLen int) string {
	text := DecodeHTMLEntities(StripHTMLTags(html))
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}

// ChunkWords splits text into consecutive chunks of at most wordsPerChunk
// whitespace-separated words.
func ChunkWords(text string, wordsPerChunk int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || wordsPerChunk <= 0 {
		return nil
	}
	var chunks []string
	for start := 0; start < len(words); start += wordsPerChunk {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
