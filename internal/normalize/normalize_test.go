package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"simple tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"script block removed", `<p>a</p><script type="text/javascript">var x = "<b>";</script><p>b</p>`, "a b"},
		{"style block removed", "<style>p { color: red; }</style>text", "text"},
		{"whitespace collapsed", "<div>a</div>\n\n\t<div>b</div>", "a b"},
		{"unclosed tag", "before <broken", "before broken"},
		{"stray brackets", "1 < 2 and 3 > 2", "1 2 and 3 2"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripHTMLTags(tt.in)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.ContainsAny(got, "<>"))
			assert.NotContains(t, got, "  ")
		})
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"&#8220;Fed&#8221; &amp; Markets&#8230;", `"Fed" & Markets...`},
		{"It&#8217;s here", "It's here"},
		{"rates &#8211; up", "rates - up"},
		{"a&nbsp;b", "a b"},
		{"&lt;tag&gt;", "<tag>"},
		{"unknown &copy; stays", "unknown &copy; stays"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeHTMLEntities(tt.in))
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 0, WordCount("   \t\n"))
	assert.Equal(t, 3, WordCount("one two  three"))
	assert.Equal(t, 5, WordCount("the quick brown\nfox jumps"))
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fed Raises Rates Again!", "fed raises rates again"},
		{"It&#8217;s Time", "it's time"},
		{"  Spaced   Out  ", "spaced out"},
		{"Smart “Quotes” and ‘more’", "smart quotes and 'more'"},
		{"Well-Known: A Story?", "well-known a story"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTitle(tt.in))
	}
}

func TestLocalDateString(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := LocalDateString("2024-03-05T14:30:00", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got)

	// UTC timestamp shortly after midnight lands on the previous local day.
	got, err = LocalDateString("2024-03-06T02:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got)

	got, err = LocalDateString("2024-03-05", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got)
}

func TestLocalDateString_FallsBackToToday(t *testing.T) {
	loc := time.UTC

	got, err := LocalDateString("not a timestamp", loc)
	assert.Error(t, err)
	assert.Equal(t, time.Now().In(loc).Format("2006-01-02"), got)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("<p>short text</p>", 100))

	long := Excerpt("<p>the quick brown fox jumps over the lazy dog</p>", 20)
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.LessOrEqual(t, len(long), 23)
}

func TestChunkWords(t *testing.T) {
	chunks := ChunkWords("a b c d e", 2)
	assert.Equal(t, []string{"a b", "c d", "e"}, chunks)

	assert.Nil(t, ChunkWords("", 2))
	assert.Nil(t, ChunkWords("a b", 0))
}
