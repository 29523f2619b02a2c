package acquire

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/lexingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_TextSource(t *testing.T) {
	a := NewAcquirer()

	got, err := a.Acquire(context.Background(), core.TextSource{
		Title: "Pasted note",
		Text:  "Some pasted legal text.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Pasted note", got.Title)
	assert.Equal(t, "Some pasted legal text.", got.Text)
}

func TestAcquire_TextSource_Empty(t *testing.T) {
	a := NewAcquirer()

	_, err := a.Acquire(context.Background(), core.TextSource{Text: "  \n "})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestAcquire_RecordSource(t *testing.T) {
	a := NewAcquirer()

	got, err := a.Acquire(context.Background(), core.RecordSource{
		Title:      "Art 12",
		Content:    "Record body.",
		Category:   "criminal",
		SourceName: "bulk upload",
		SourceURL:  "https://lex.uz/docs/12",
		Line:       3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Art 12", got.Title)
	assert.Equal(t, "Record body.", got.Text)
	assert.Equal(t, "criminal", got.Category)
	assert.Equal(t, "bulk upload", got.SourceName)
	assert.Equal(t, "https://lex.uz/docs/12", got.SourceURL)
}

func TestAcquire_RecordSource_EmptyContent(t *testing.T) {
	a := NewAcquirer()

	_, err := a.Acquire(context.Background(), core.RecordSource{Title: "t", Line: 7})
	require.ErrorIs(t, err, ErrNoContent)
	assert.Contains(t, err.Error(), "line 7")
}

func TestLoadJSONLRecords(t *testing.T) {
	input := `{"title":"A","content":"Body A","category":"civil"}

{"title":"B","content":"Body B","sourceUrl":"https://x.example"}
`

	records, err := LoadJSONLRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2, "blank lines are skipped")

	assert.Equal(t, "A", records[0].Title)
	assert.Equal(t, "civil", records[0].Category)
	assert.Equal(t, 1, records[0].Line)

	assert.Equal(t, "B", records[1].Title)
	assert.Equal(t, "https://x.example", records[1].SourceURL)
	assert.Equal(t, 3, records[1].Line, "line numbers reflect the file, not the record index")
}

func TestLoadJSONLRecords_MalformedLineFailsWholeLoad(t *testing.T) {
	input := `{"title":"A","content":"ok"}
{not json}
`

	_, err := LoadJSONLRecords(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"civil_code-art51.pdf", "civil code art51"},
		{"/tmp/uploads/notes.txt", "notes"},
		{"___.pdf", "(untitled file)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleFromFilename(tt.in), tt.in)
	}
}

func TestFirstLineTitle(t *testing.T) {
	assert.Equal(t, "First line", firstLineTitle("  First line\nsecond line"))

	long := strings.Repeat("ж", 300)
	got := firstLineTitle(long)
	assert.Len(t, []rune(got), 120)
}
