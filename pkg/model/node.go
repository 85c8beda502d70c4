// Package model defines the records stored in a cloud shelf index document:
// the tree nodes, the leading meta record and the wrapper that carries the
// node array on the second line of the document.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reserved identifiers of the cloud shelf.
const (
	// CloudShelfUUID is the parent id of every top-level node. The shelf
	// itself is never stored in the index document.
	CloudShelfUUID = "cloud"
	// CloudExternalName marks nodes created by this synchronization source.
	CloudExternalName = "cloud"
	// DefaultPosition sorts a node after all of its siblings.
	DefaultPosition int64 = 2147483647
)

// NodeType is the tag of a node variant.
type NodeType string

const (
	TypeShelf     NodeType = "shelf"
	TypeGroup     NodeType = "folder"
	TypeBookmark  NodeType = "bookmark"
	TypeArchive   NodeType = "archive"
	TypeSeparator NodeType = "separator"
	TypeNotes     NodeType = "notes"
)

// legacyTypeCodes maps the integer codes written by older clients.
var legacyTypeCodes = map[int64]NodeType{
	1: TypeShelf,
	2: TypeGroup,
	3: TypeBookmark,
	4: TypeArchive,
	5: TypeSeparator,
	6: TypeNotes,
}

// Valid reports whether t is one of the known node variants.
func (t NodeType) Valid() bool {
	switch t {
	case TypeShelf, TypeGroup, TypeBookmark, TypeArchive, TypeSeparator, TypeNotes:
		return true
	}
	return false
}

// IsContainer reports whether nodes of this type may have children.
func (t NodeType) IsContainer() bool {
	return t == TypeShelf || t == TypeGroup
}

// UnmarshalJSON accepts both the string tag and the legacy integer code.
func (t *NodeType) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = NodeType(s)
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	var code int64
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("node type: %w", err)
	}
	nt, ok := legacyTypeCodes[code]
	if !ok {
		return fmt.Errorf("node type: unknown code %d", code)
	}
	*t = nt
	return nil
}

// TodoState is the task-tracking state of a node.
type TodoState int64

const (
	TodoStateTodo      TodoState = 1
	TodoStateWaiting   TodoState = 2
	TodoStatePostponed TodoState = 3
	TodoStateDone      TodoState = 4
	TodoStateCancelled TodoState = 5
)

var todoNames = map[TodoState]string{
	TodoStateTodo:      "TODO",
	TodoStateWaiting:   "WAITING",
	TodoStatePostponed: "POSTPONED",
	TodoStateDone:      "DONE",
	TodoStateCancelled: "CANCELLED",
}

func (s TodoState) String() string {
	if name, ok := todoNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TodoState(%d)", int64(s))
}

// ParseTodoState converts a state name such as "TODO" or "waiting".
func ParseTodoState(name string) (TodoState, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for state, n := range todoNames {
		if n == upper {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown todo state %q", name)
}

// NodeFieldOrder is the key order of a serialized node.
var NodeFieldOrder = []string{
	"name",
	"uuid",
	"uri",
	"pos",
	"icon",
	"parent_id",
	"type",
	"tags",
	"date_added",
	"date_modified",
	"content_modified",
	"todo_state",
	"details",
	"todo_date",
	"has_notes",
	"has_comments",
	"content_type",
	"byte_length",
	"external",
	"external_id",
}

// Node is one item of the bookmark tree. Fields are declared in wire order;
// absent values are omitted from the encoding, never written as null.
type Node struct {
	Name            string     `json:"name,omitempty"`
	UUID            string     `json:"uuid,omitempty"`
	URI             string     `json:"uri,omitempty"`
	Pos             *int64     `json:"pos,omitempty"`
	Icon            string     `json:"icon,omitempty"`
	ParentID        string     `json:"parent_id,omitempty"`
	Type            NodeType   `json:"type,omitempty"`
	Tags            string     `json:"tags,omitempty"`
	DateAdded       *int64     `json:"date_added,omitempty"`
	DateModified    *int64     `json:"date_modified,omitempty"`
	ContentModified *int64     `json:"content_modified,omitempty"`
	TodoState       *TodoState `json:"todo_state,omitempty"`
	Details         string     `json:"details,omitempty"`
	TodoDate        string     `json:"todo_date,omitempty"`
	HasNotes        *bool      `json:"has_notes,omitempty"`
	HasComments     *bool      `json:"has_comments,omitempty"`
	ContentType     string     `json:"content_type,omitempty"`
	ByteLength      *int64     `json:"byte_length,omitempty"`
	External        string     `json:"external,omitempty"`
	ExternalID      string     `json:"external_id,omitempty"`

	// Extra holds fields this client does not know about. They are written
	// back verbatim after the known fields.
	Extra map[string]json.RawMessage `json:"-"`
}

// nodeFields has the layout of Node without its JSON methods.
type nodeFields Node

func (n Node) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(nodeFields(n))
	if err != nil {
		return nil, err
	}
	return appendExtra(data, n.Extra, NodeFieldOrder)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var fields nodeFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownFields(data, NodeFieldOrder)
	if err != nil {
		return err
	}
	*n = Node(fields)
	n.Extra = extra
	return nil
}

// Position returns the sibling ordering key, defaulting to the end.
func (n *Node) Position() int64 {
	if n.Pos == nil {
		return DefaultPosition
	}
	return *n.Pos
}

// NotesAttached reports whether a .notes companion blob exists.
func (n *Node) NotesAttached() bool {
	return n.HasNotes != nil && *n.HasNotes
}

// CommentsAttached reports whether a .comments companion blob exists.
func (n *Node) CommentsAttached() bool {
	return n.HasComments != nil && *n.HasComments
}

// IsContainer reports whether the node may have children.
func (n *Node) IsContainer() bool {
	return n.Type.IsContainer()
}

// Added returns the creation time, or the zero time when unset.
func (n *Node) Added() time.Time {
	return fromMillis(n.DateAdded)
}

// Modified returns the last mutation time, or the zero time when unset.
func (n *Node) Modified() time.Time {
	return fromMillis(n.DateModified)
}

// Touch sets the modification time.
func (n *Node) Touch(now time.Time) {
	n.DateModified = Int64(now.UnixMilli())
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := *n
	c.Pos = clonePtr(n.Pos)
	c.DateAdded = clonePtr(n.DateAdded)
	c.DateModified = clonePtr(n.DateModified)
	c.ContentModified = clonePtr(n.ContentModified)
	c.TodoState = clonePtr(n.TodoState)
	c.HasNotes = clonePtr(n.HasNotes)
	c.HasComments = clonePtr(n.HasComments)
	c.ByteLength = clonePtr(n.ByteLength)
	if n.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(n.Extra))
		for k, v := range n.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Todo returns a pointer to s.
func Todo(s TodoState) *TodoState { return &s }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func fromMillis(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms)
}
