package share

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctfence/scrapbee/pkg/attachment"
	"github.com/vctfence/scrapbee/pkg/blob"
	"github.com/vctfence/scrapbee/pkg/model"
	"github.com/vctfence/scrapbee/pkg/shelf"
)

func newSharer(t *testing.T, opts ...Option) (*Sharer, *shelf.Store, *blob.MemoryBackend) {
	t.Helper()
	mem := blob.NewMemoryBackend()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := shelf.New(blob.Scoped(mem, ""), shelf.WithLogger(logger))
	return New(store, append([]Option{WithLogger(logger)}, opts...)...), store, mem
}

func TestShare_Bookmark(t *testing.T) {
	s, store, mem := newSharer(t)

	node, err := s.Share(context.Background(), Request{URL: "https://example.com:8443/a?b=c"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeBookmark, node.Type)
	assert.Equal(t, "example.com", node.Name)
	assert.Equal(t, "https://example.com:8443/favicon.ico", node.Icon)

	group, err := store.Node(node.ParentID)
	require.NoError(t, err)
	assert.Equal(t, DefaultFolder, group.Name)
	assert.Equal(t, []string{"Cloud/index.jsonl"}, mem.Paths())
}

func TestShare_TextWithURLIsArchive(t *testing.T) {
	s, store, mem := newSharer(t)
	ctx := context.Background()

	node, err := s.Share(ctx, Request{URL: "https://x", Text: "first line\n<second>", TodoState: "todo", Details: "read later"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeArchive, node.Type)
	assert.Equal(t, attachment.TypeHTML, node.ContentType)
	assert.Equal(t, "first line <second>", node.Name)
	assert.Equal(t, model.TodoStateTodo, *node.TodoState)
	assert.Equal(t, "read later", node.Details)
	assert.NotNil(t, node.ContentModified)

	data, err := store.ReadArchiveBytes(ctx, node.UUID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<p>first line</p><p>&lt;second&gt;</p>")

	// The attachment is uploaded before the index referencing it.
	var uploads []string
	for _, c := range mem.CallsTo("upload") {
		uploads = append(uploads, c.Path)
	}
	assert.Equal(t, []string{"/Cloud/" + node.UUID + ".data", "/Cloud/index.jsonl"}, uploads)
}

func TestShare_TextOnlyIsNotes(t *testing.T) {
	s, store, _ := newSharer(t, WithFolder("Inbox"))
	ctx := context.Background()

	node, err := s.Share(ctx, Request{Text: "just a thought"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeNotes, node.Type)
	assert.True(t, node.NotesAttached())

	notes, err := store.ReadNotes(ctx, node.UUID)
	require.NoError(t, err)
	assert.Equal(t, "just a thought", notes.Content)

	group, err := store.Node(node.ParentID)
	require.NoError(t, err)
	assert.Equal(t, "Inbox", group.Name)
}

func TestShare_ReusesFolderAcrossCalls(t *testing.T) {
	s, store, _ := newSharer(t)
	ctx := context.Background()

	a, err := s.Share(ctx, Request{URL: "https://a", Folder: "Reading/Later"})
	require.NoError(t, err)
	b, err := s.Share(ctx, Request{URL: "https://b", Folder: "reading/later"})
	require.NoError(t, err)
	assert.Equal(t, a.ParentID, b.ParentID)
	assert.Len(t, store.Children(model.CloudShelfUUID), 1)
	assert.Len(t, store.Children(a.ParentID), 2)
}

func TestShare_Errors(t *testing.T) {
	s, _, mem := newSharer(t)
	ctx := context.Background()

	_, err := s.Share(ctx, Request{Title: "only a title"})
	assert.ErrorIs(t, err, ErrNothingToShare)

	_, err = s.Share(ctx, Request{URL: "https://x", TodoState: "someday"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, ErrNothingToShare, ErrInvalidRequest)

	mem.Fail = func(string, string) error { return blob.ErrNotAuthorized }
	_, err = s.Share(ctx, Request{URL: "https://x"})
	assert.True(t, blob.IsNotAuthorized(err))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       Request
		url, txt string
	}{
		{"bare link as text", Request{Text: " https://x.org/p \n"}, "https://x.org/p", ""},
		{"trailing link line", Request{Text: "Quote here\nhttps://x.org/p"}, "https://x.org/p", "Quote here"},
		{"explicit url kept", Request{URL: "https://a", Text: "t\nhttps://b"}, "https://a", "t\nhttps://b"},
		{"plain text", Request{Text: "no link at all"}, "", "no link at all"},
		{"link inside prose", Request{Text: "see https://x.org for more"}, "", "see https://x.org for more"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Normalize(tc.in)
			assert.Equal(t, tc.url, out.URL)
			assert.Equal(t, tc.txt, out.Text)
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Given", Title(Request{Title: " Given ", Text: "text", URL: "https://h"}))
	assert.Equal(t, "short text", Title(Request{Text: "short text", URL: "https://h"}))
	assert.Equal(t, "h.example", Title(Request{URL: "https://h.example/path"}))
	assert.Empty(t, Title(Request{}))

	long := strings.Repeat("word ", 30)
	assert.Equal(t, ShortenTitle(long), Title(Request{Title: long}))
}

func TestShortenTitle(t *testing.T) {
	assert.Equal(t, "exact", ShortenTitle("exact"))

	text := "The quick brown fox jumps over the lazy dog and keeps running far away"
	got := ShortenTitle(text)
	assert.Equal(t, "The quick brown fox jumps over the lazy dog and keeps...", got)
	assert.LessOrEqual(t, len([]rune(strings.TrimSuffix(got, "..."))), MaxTitleLength)

	runes := strings.Repeat("ж", 80)
	assert.Equal(t, strings.Repeat("ж", 60)+"...", ShortenTitle(runes))
}
