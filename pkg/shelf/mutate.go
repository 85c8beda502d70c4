package shelf

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/vctfence/scrapbee/pkg/attachment"
	"github.com/vctfence/scrapbee/pkg/model"
)

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// GroupName turns a folder path into the flat name of a top-level folder.
func GroupName(path string) string {
	return pathSeparators.Replace(path)
}

// FindOrCreateGroup returns the top-level folder whose name matches path
// case-insensitively after separators are replaced with underscores,
// creating it when absent. Nothing is persisted until Save.
func (s *Store) FindOrCreateGroup(path string) (*model.Node, error) {
	name := GroupName(path)
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("empty folder name: %w", ErrInvalidNode)
	}

	fold := cases.Fold()
	want := fold.String(name)
	for _, n := range s.children[rootKey] {
		if n.Type == model.TypeGroup && fold.String(n.Name) == want {
			return n.Clone(), nil
		}
	}

	now := s.stamp()
	group := &model.Node{
		Name:         name,
		UUID:         model.NewUUID(),
		ParentID:     model.CloudShelfUUID,
		Type:         model.TypeGroup,
		DateAdded:    model.Int64(now),
		DateModified: model.Int64(now),
	}
	group.External = model.CloudExternalName
	group.ExternalID = group.UUID

	s.append(group)
	s.logger.Debug("folder created", "uuid", group.UUID, "name", name)
	return group.Clone(), nil
}

// AddNode stores a copy of n as a new node and returns it. The store
// assigns the uuid, the provenance markers and both timestamps, overriding
// whatever n carries. An empty parent id places the node at the top level;
// any other parent must be an existing shelf or folder. n is not modified.
func (s *Store) AddNode(n *model.Node) (*model.Node, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node: %w", ErrInvalidNode)
	}
	if !n.Type.Valid() {
		return nil, fmt.Errorf("type %q: %w", n.Type, ErrInvalidNode)
	}

	node := n.Clone()
	if node.ParentID == "" {
		node.ParentID = model.CloudShelfUUID
	}
	if key(node.ParentID) != rootKey {
		parent := s.lookup(node.ParentID)
		if parent == nil {
			return nil, fmt.Errorf("parent %s: %w", node.ParentID, ErrDanglingParent)
		}
		if !parent.IsContainer() {
			return nil, fmt.Errorf("parent %s (%s): %w", node.ParentID, parent.Type, ErrNotContainer)
		}
		node.ParentID = parent.UUID
	} else {
		node.ParentID = model.CloudShelfUUID
	}

	node.UUID = model.NewUUID()
	node.External = model.CloudExternalName
	node.ExternalID = node.UUID

	now := s.stamp()
	node.DateAdded = model.Int64(now)
	node.DateModified = model.Int64(now)
	if node.Type == model.TypeArchive || node.Type == model.TypeNotes {
		node.ContentModified = model.Int64(now)
	}
	if node.Pos == nil {
		node.Pos = model.Int64(model.DefaultPosition)
	}

	s.append(node)
	return node.Clone(), nil
}

func (s *Store) append(n *model.Node) {
	s.nodes = append(s.nodes, n)
	s.index(n)
}

// DeleteSubtree removes the node with uuid and, for a shelf or folder, all
// of its descendants, then deletes their attachment blobs. Attachment
// failures are logged and do not undo the removal. The removed nodes are
// returned in subtree order; an unknown uuid removes nothing. The index
// document is not written until Save.
func (s *Store) DeleteSubtree(ctx context.Context, uuid string) []*model.Node {
	ctx, end := s.startSpan(ctx, "shelf.DeleteSubtree")
	defer end(nil)

	subtree := s.subtree(uuid)
	if len(subtree) == 0 {
		return nil
	}

	doomed := make(map[*model.Node]bool, len(subtree))
	for _, n := range subtree {
		doomed[n] = true
	}
	kept := make([]*model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if !doomed[n] {
			kept = append(kept, n)
		}
	}
	s.nodes = kept
	s.reindex()

	s.deleteAttachments(ctx, subtree)
	return cloneAll(subtree)
}

// attachmentsOf lists the blob names owned by n according to its type and
// flags.
func attachmentsOf(n *model.Node) []string {
	var names []string
	if n.Type == model.TypeArchive {
		names = append(names, attachment.Name(n.UUID, attachment.KindData))
	}
	if n.NotesAttached() {
		names = append(names,
			attachment.Name(n.UUID, attachment.KindNotes),
			attachment.Name(n.UUID, attachment.KindView))
	}
	if n.CommentsAttached() {
		names = append(names, attachment.Name(n.UUID, attachment.KindComments))
	}
	return names
}

func (s *Store) deleteAttachments(ctx context.Context, nodes []*model.Node) {
	seen := make(map[string]bool)
	var names []string
	for _, n := range nodes {
		for _, name := range attachmentsOf(n) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.deleteConcurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := s.backend.Delete(ctx, name); err != nil {
				s.logger.WarnContext(ctx, "failed to delete attachment", "blob", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.logger.DebugContext(ctx, "attachments deleted", "count", len(names))
}
