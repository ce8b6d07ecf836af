package document

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-translator/internal/types"
)

func TestReplaceText_CollapsesRunsKeepingFirstStyle(t *testing.T) {
	u := NewParagraph(1,
		FormattingRun{Text: "Hei ", Bold: Ptr(true), FontSize: Ptr(12.0), FontName: Ptr("Times"), Color: &RGB{R: 200}},
		FormattingRun{Text: "maailma", Italic: Ptr(true)},
	)
	require.Equal(t, "Hei maailma", u.Text)

	first := u.Runs[0]
	u.ReplaceText("Hello world")

	require.Len(t, u.Runs, 1)
	assert.Equal(t, "Hello world", u.Text)
	assert.Equal(t, "Hello world", u.Runs[0].Text)
	assert.True(t, u.Runs[0].SameStyle(first))
	assert.Nil(t, u.Runs[0].Italic)

	// attributes are copies, not shared pointers
	*first.Bold = false
	assert.True(t, *u.Runs[0].Bold)
}

func TestReplaceText_NoRuns(t *testing.T) {
	u := &TextUnit{Kind: KindParagraph, Text: "Hei"}
	u.ReplaceText("Hi")
	assert.Equal(t, "Hi", u.Text)
	assert.Empty(t, u.Runs)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, (&TextUnit{Text: ""}).IsBlank())
	assert.True(t, (&TextUnit{Text: " \t\n"}).IsBlank())
	assert.True(t, (&TextUnit{Kind: KindImage, Image: []byte{1}}).IsBlank())
	assert.False(t, (&TextUnit{Text: " x "}).IsBlank())
}

func TestSameStyle(t *testing.T) {
	a := FormattingRun{Bold: Ptr(true), Color: &RGB{1, 2, 3}}
	b := FormattingRun{Bold: Ptr(true), Color: &RGB{1, 2, 3}}
	c := FormattingRun{Bold: Ptr(false), Color: &RGB{1, 2, 3}}
	d := FormattingRun{Color: &RGB{1, 2, 3}}

	assert.True(t, a.SameStyle(b))
	assert.False(t, a.SameStyle(c))
	assert.False(t, a.SameStyle(d))
	assert.Equal(t, "010203", a.Color.Hex())
}

func TestDocument_AddRenumberClone(t *testing.T) {
	doc := New("raw/document.pdf", "full")
	require.NotEmpty(t, doc.ID)

	doc.Add(&TextUnit{Text: ""})
	doc.Add(NewParagraph(1, FormattingRun{Text: "Hei", Bold: Ptr(true)}))
	doc.Add(&TextUnit{Text: "Toinen"})
	assert.Equal(t, []string{"", "Hei", "Toinen"}, doc.Texts())
	assert.Equal(t, 2, doc.CountNonBlank())

	doc.Units = append(doc.Units[1:], doc.Units[0])
	doc.Renumber()
	for i, u := range doc.Units {
		assert.Equal(t, i, u.Index)
	}

	clone := doc.Clone()
	clone.Units[0].ReplaceText("Hi")
	assert.Equal(t, "Hei", doc.Units[0].Text)
	assert.Len(t, doc.Units[0].Runs, 1)
	*clone.Units[0].Runs[0].Bold = false
	assert.True(t, *doc.Units[0].Runs[0].Bold)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs)

	doc := New("in.pdf", "text-only")
	doc.Add(&TextUnit{Kind: KindHeading, Page: 1, Text: "Page 1"})
	doc.Add(NewParagraph(1, FormattingRun{Text: "Hei", Underline: Ptr(true), FontSize: Ptr(11.5)}))
	doc.Add(&TextUnit{Kind: KindImage, Page: 1, Image: []byte{0x89, 'P', 'N', 'G'}})

	require.NoError(t, store.Save(doc, "raw/out/doc.json"))

	exists, err := afero.Exists(fs, "raw/out/doc.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp file must be renamed away")

	loaded, err := store.Load("raw/out/doc.json")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, loaded.ID)
	assert.Equal(t, doc.Texts(), loaded.Texts())
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, loaded.Units[2].Image)
	assert.True(t, loaded.Units[1].Runs[0].SameStyle(doc.Units[1].Runs[0]))
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(afero.NewMemMapFs())
	doc := New("in.pdf", "full")
	doc.Add(&TextUnit{Text: "Hei"})
	require.NoError(t, store.Save(doc, "t.json"))

	doc.Units[0].ReplaceText("Hi")
	require.NoError(t, store.Save(doc, "t.json"))

	loaded, err := store.Load("t.json")
	require.NoError(t, err)
	assert.Equal(t, "Hi", loaded.Units[0].Text)
}

func TestStore_SaveFailureIsPersistenceFailed(t *testing.T) {
	store := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	err := store.Save(New("in.pdf", "full"), "raw/t.json")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrPersistenceFailed))
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(afero.NewMemMapFs())
	_, err := store.Load("missing.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestUnmarshal_RejectsNullUnit(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"x","units":[null]}`))
	assert.Error(t, err)
}
