package shelf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vctfence/scrapbee/pkg/model"
)

// key folds a uuid for lookups; identities match case-insensitively.
func key(uuid string) string {
	return strings.ToUpper(uuid)
}

var rootKey = key(model.CloudShelfUUID)

// reindex rebuilds the uuid and parent adjacency maps from s.nodes. When
// uuids collide the first node wins, as in a linear scan.
func (s *Store) reindex() {
	s.byUUID = make(map[string]*model.Node, len(s.nodes))
	s.children = make(map[string][]*model.Node)
	for _, n := range s.nodes {
		s.index(n)
	}
}

func (s *Store) index(n *model.Node) {
	k := key(n.UUID)
	if _, dup := s.byUUID[k]; !dup {
		s.byUUID[k] = n
	}
	p := key(n.ParentID)
	s.children[p] = append(s.children[p], n)
}

func (s *Store) lookup(uuid string) *model.Node {
	if uuid == "" {
		return nil
	}
	return s.byUUID[key(uuid)]
}

// Nodes returns copies of all nodes in collection order.
func (s *Store) Nodes() []*model.Node {
	return cloneAll(s.nodes)
}

// Node returns a copy of the node with uuid, or ErrNodeNotFound.
func (s *Store) Node(uuid string) (*model.Node, error) {
	n := s.lookup(uuid)
	if n == nil {
		return nil, fmt.Errorf("%s: %w", uuid, ErrNodeNotFound)
	}
	return n.Clone(), nil
}

// Children returns copies of the direct children of uuid in insertion
// order. The root shelf id lists the top-level nodes.
func (s *Store) Children(uuid string) []*model.Node {
	return cloneAll(s.children[key(uuid)])
}

// QuerySubtree returns the node with uuid followed by, when it is a shelf
// or folder, all of its descendants in depth-first order. Children are
// visited in insertion order. An unknown uuid yields an empty result.
func (s *Store) QuerySubtree(uuid string) []*model.Node {
	return cloneAll(s.subtree(uuid))
}

func (s *Store) subtree(uuid string) []*model.Node {
	root := s.lookup(uuid)
	if root == nil {
		return nil
	}
	out := []*model.Node{root}
	if !root.IsContainer() {
		return out
	}
	seen := map[*model.Node]bool{root: true}
	var walk func(parent *model.Node)
	walk = func(parent *model.Node) {
		for _, child := range s.children[key(parent.UUID)] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			if child.IsContainer() {
				walk(child)
			}
		}
	}
	walk(root)
	return out
}

// Validate checks the tree invariants of the snapshot: every node has a
// non-empty unique uuid distinct from the root id, a known type, and a
// parent that is the root shelf or a node of the snapshot, and no parent
// chain loops. All violations are reported.
func (s *Store) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.nodes))
	for i, n := range s.nodes {
		k := key(n.UUID)
		switch {
		case n.UUID == "":
			errs = append(errs, fmt.Errorf("node #%d: empty uuid: %w", i, ErrInvalidNode))
			continue
		case k == rootKey:
			errs = append(errs, fmt.Errorf("node %s: %w", n.UUID, ErrRootParent))
			continue
		case seen[k]:
			errs = append(errs, fmt.Errorf("node %s: %w", n.UUID, ErrDuplicateUUID))
			continue
		}
		seen[k] = true

		if !n.Type.Valid() {
			errs = append(errs, fmt.Errorf("node %s: unknown type %q: %w", n.UUID, n.Type, ErrInvalidNode))
		}
		p := key(n.ParentID)
		if p != rootKey && s.byUUID[p] == nil {
			errs = append(errs, fmt.Errorf("node %s: parent %q: %w", n.UUID, n.ParentID, ErrDanglingParent))
		}
	}

	for _, n := range s.nodes {
		if s.inCycle(n) {
			errs = append(errs, fmt.Errorf("node %s: %w", n.UUID, ErrCycle))
		}
	}
	return errors.Join(errs...)
}

// inCycle walks the parent chain of n and reports whether it revisits a
// node before leaving the snapshot.
func (s *Store) inCycle(n *model.Node) bool {
	visited := map[string]bool{key(n.UUID): true}
	for p := key(n.ParentID); p != rootKey; {
		parent := s.byUUID[p]
		if parent == nil {
			return false
		}
		if visited[p] {
			return true
		}
		visited[p] = true
		p = key(parent.ParentID)
	}
	return false
}

func cloneAll(nodes []*model.Node) []*model.Node {
	out := make([]*model.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
