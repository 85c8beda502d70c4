package shelf

import (
	"context"
	"fmt"

	"github.com/vctfence/scrapbee/pkg/attachment"
	"github.com/vctfence/scrapbee/pkg/blob"
	"github.com/vctfence/scrapbee/pkg/model"
)

// StoreArchive writes html as the archived content of n to <uuid>.data and
// marks the node's content as modified. n must be an archive node. The index
// still has to be saved.
func (s *Store) StoreArchive(ctx context.Context, n *model.Node, html string) error {
	return s.storeArchive(ctx, n, attachment.NewTextArchive(html, attachment.TypeHTML))
}

// StoreArchiveBytes writes binary content, base64 encoded, to <uuid>.data
// and records its type and length on the node.
func (s *Store) StoreArchiveBytes(ctx context.Context, n *model.Node, data []byte, contentType string) error {
	return s.storeArchive(ctx, n, attachment.NewBinaryArchive(data, contentType))
}

func (s *Store) storeArchive(ctx context.Context, n *model.Node, a *attachment.Archive) error {
	if n == nil || n.UUID == "" {
		return fmt.Errorf("store archive: %w", ErrInvalidNode)
	}
	if n.Type != model.TypeArchive {
		return fmt.Errorf("store archive %s: type %q: %w", n.UUID, n.Type, ErrInvalidNode)
	}
	data, err := attachment.EncodeArchive(a)
	if err != nil {
		return fmt.Errorf("store archive: %w", err)
	}
	if err := s.backend.Upload(ctx, attachment.Name(n.UUID, attachment.KindData), data, true); err != nil {
		return fmt.Errorf("store archive %s: %w", n.UUID, err)
	}

	s.touchContent(n, func(t *model.Node) {
		if a.Type != "" {
			t.ContentType = a.Type
		}
		t.ByteLength = nil
		if a.IsBinary() {
			t.ByteLength = model.Int64(*a.ByteLength)
		}
	})
	return nil
}

// StoreNotes writes text to <uuid>.notes together with its rendered HTML
// view in <uuid>.view, and flags the node as having notes.
func (s *Store) StoreNotes(ctx context.Context, n *model.Node, text string) error {
	if n == nil || n.UUID == "" {
		return fmt.Errorf("store notes: %w", ErrInvalidNode)
	}
	data, err := attachment.EncodeNotes(attachment.NewTextNotes(text))
	if err != nil {
		return fmt.Errorf("store notes: %w", err)
	}
	if err := s.backend.Upload(ctx, attachment.Name(n.UUID, attachment.KindNotes), data, true); err != nil {
		return fmt.Errorf("store notes %s: %w", n.UUID, err)
	}
	view := attachment.RenderNotesView(text)
	if err := s.backend.Upload(ctx, attachment.Name(n.UUID, attachment.KindView), []byte(view), true); err != nil {
		return fmt.Errorf("store notes view %s: %w", n.UUID, err)
	}

	s.touchContent(n, func(t *model.Node) {
		t.HasNotes = model.Bool(true)
	})
	return nil
}

// touchContent applies update and a fresh content_modified stamp to n and
// to the stored node with the same uuid, if any.
func (s *Store) touchContent(n *model.Node, update func(*model.Node)) {
	now := s.stamp()
	targets := []*model.Node{n}
	if stored := s.lookup(n.UUID); stored != nil && stored != n {
		targets = append(targets, stored)
	}
	for _, t := range targets {
		update(t)
		t.ContentModified = model.Int64(now)
	}
}

// ReadArchiveBytes returns the archived content of uuid as raw bytes. A
// missing or malformed attachment yields nil without an error; backend
// failures such as ErrNotAuthorized are returned.
func (s *Store) ReadArchiveBytes(ctx context.Context, uuid string) ([]byte, error) {
	raw, err := s.ReadRaw(ctx, uuid, attachment.KindData)
	if err != nil || raw == nil {
		return nil, err
	}
	a, err := attachment.DecodeArchive(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "malformed archive attachment", "uuid", uuid, "error", err)
		return nil, nil
	}
	data, err := a.Bytes()
	if err != nil {
		s.logger.WarnContext(ctx, "malformed archive attachment", "uuid", uuid, "error", err)
		return nil, nil
	}
	return data, nil
}

// ReadNotes returns the decoded notes of uuid, or nil when absent or
// malformed.
func (s *Store) ReadNotes(ctx context.Context, uuid string) (*attachment.Notes, error) {
	raw, err := s.ReadRaw(ctx, uuid, attachment.KindNotes)
	if err != nil || raw == nil {
		return nil, err
	}
	notes, err := attachment.DecodeNotes(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "malformed notes attachment", "uuid", uuid, "error", err)
		return nil, nil
	}
	return notes, nil
}

// ReadRaw returns the undecoded attachment of kind owned by uuid, or nil
// when it does not exist.
func (s *Store) ReadRaw(ctx context.Context, uuid string, kind attachment.Kind) ([]byte, error) {
	if uuid == "" {
		return nil, fmt.Errorf("read attachment: %w", ErrInvalidNode)
	}
	if stored := s.lookup(uuid); stored != nil {
		uuid = stored.UUID
	}
	data, err := s.backend.Download(ctx, attachment.Name(uuid, kind))
	if err != nil {
		if blob.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s attachment of %s: %w", kind, uuid, err)
	}
	return data, nil
}

// ReadIndexRaw returns the remote index document as stored, or nil when it
// does not exist.
func (s *Store) ReadIndexRaw(ctx context.Context) ([]byte, error) {
	data, err := s.backend.Download(ctx, s.indexName)
	if err != nil {
		if blob.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	return data, nil
}
