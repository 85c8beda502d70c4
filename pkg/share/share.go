// Package share files an already-extracted shared item (a link, a piece of
// text, or both) into a folder of the cloud shelf.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/vctfence/scrapbee/pkg/attachment"
	"github.com/vctfence/scrapbee/pkg/model"
	"github.com/vctfence/scrapbee/pkg/shelf"
)

const (
	// DefaultFolder receives shared items when no folder is named.
	DefaultFolder = "Shared"
	// MaxTitleLength bounds titles derived from shared text.
	MaxTitleLength = 60
)

var (
	// ErrInvalidRequest reports a request that cannot be shared as given.
	ErrInvalidRequest = errors.New("invalid share request")
	// ErrNothingToShare is returned for a request with neither URL nor text.
	ErrNothingToShare = fmt.Errorf("%w: nothing to share", ErrInvalidRequest)
)

var linkPattern = regexp.MustCompile(`^https?://\S+$`)

// Request is a shared item.
type Request struct {
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
	Text      string `json:"text,omitempty"`
	TodoState string `json:"todo_state,omitempty"`
	Details   string `json:"details,omitempty"`
	Folder    string `json:"folder,omitempty"`
}

// Sharer runs share requests against a store. Like the store itself it is
// not safe for concurrent use.
type Sharer struct {
	store  *shelf.Store
	folder string
	logger *slog.Logger
}

// Option configures a Sharer.
type Option func(*Sharer)

// WithFolder sets the folder used when a request names none.
func WithFolder(name string) Option {
	return func(s *Sharer) {
		if name != "" {
			s.folder = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sharer) { s.logger = l.With("component", "share") }
}

// New creates a Sharer over store.
func New(store *shelf.Store, opts ...Option) *Sharer {
	s := &Sharer{
		store:  store,
		folder: DefaultFolder,
		logger: slog.Default().With("component", "share"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Share reloads the index, adds a node for req under its folder, writes the
// node's attachment and saves the index. The attachment is written before
// the index that references it.
func (s *Sharer) Share(ctx context.Context, req Request) (*model.Node, error) {
	req = Normalize(req)
	if req.URL == "" && req.Text == "" {
		return nil, ErrNothingToShare
	}

	var todo *model.TodoState
	if req.TodoState != "" {
		state, err := model.ParseTodoState(req.TodoState)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		todo = &state
	}

	if err := s.store.Load(ctx); err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	folder := req.Folder
	if folder == "" {
		folder = s.folder
	}
	group, err := s.store.FindOrCreateGroup(folder)
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	node := &model.Node{
		Name:      Title(req),
		URI:       req.URL,
		Icon:      faviconURL(req.URL),
		ParentID:  group.UUID,
		TodoState: todo,
		Details:   req.Details,
	}
	switch {
	case req.Text != "" && req.URL != "":
		node.Type = model.TypeArchive
		node.ContentType = attachment.TypeHTML
	case req.Text != "":
		node.Type = model.TypeNotes
		node.HasNotes = model.Bool(true)
	default:
		node.Type = model.TypeBookmark
	}

	added, err := s.store.AddNode(node)
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}
	switch added.Type {
	case model.TypeArchive:
		err = s.store.StoreArchive(ctx, added, attachment.RenderTextPage(req.URL, req.Text))
	case model.TypeNotes:
		err = s.store.StoreNotes(ctx, added, req.Text)
	}
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	if err := s.store.Save(ctx); err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}
	s.logger.InfoContext(ctx, "item shared", "uuid", added.UUID, "type", added.Type, "folder", group.Name)
	return s.store.Node(added.UUID)
}

// Normalize trims the request and separates a link from shared text: text
// that is a bare link becomes the URL, and a link on the last line of
// multi-line text is split off when no URL was given.
func Normalize(req Request) Request {
	req.Title = strings.TrimSpace(req.Title)
	req.URL = strings.TrimSpace(req.URL)
	req.Folder = strings.TrimSpace(req.Folder)
	req.Text = strings.TrimRight(req.Text, " \t\r\n")

	if req.URL != "" {
		return req
	}
	trimmed := strings.TrimSpace(req.Text)
	if linkPattern.MatchString(trimmed) {
		req.URL, req.Text = trimmed, ""
		return req
	}
	if i := strings.LastIndexByte(req.Text, '\n'); i > 0 {
		last := strings.TrimSpace(req.Text[i+1:])
		if linkPattern.MatchString(last) {
			req.URL = last
			req.Text = strings.TrimRight(req.Text[:i], " \t\r\n")
		}
	}
	return req
}

// Title picks the node name: the explicit title, else the shortened text,
// else the host of the URL.
func Title(req Request) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		if utf8.RuneCountInString(t) >= 2*MaxTitleLength {
			return ShortenTitle(t)
		}
		return t
	}
	if strings.TrimSpace(req.Text) != "" {
		return ShortenTitle(req.Text)
	}
	if u, err := url.Parse(req.URL); err == nil {
		return u.Hostname()
	}
	return ""
}

// ShortenTitle cuts text to MaxTitleLength runes at the last word boundary
// and marks the cut with "...".
func ShortenTitle(text string) string {
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	runes := []rune(text)
	if len(runes) <= MaxTitleLength {
		return text
	}
	cut := string(runes[:MaxTitleLength])
	if space := strings.LastIndexByte(cut, ' '); space > 0 {
		cut = cut[:space]
	}
	return strings.TrimSpace(cut) + "..."
}

func faviconURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/favicon.ico"
}
