package shelf

import "errors"

var (
	// ErrCorruptIndex is returned by Load in strict mode when the index
	// document cannot be decoded or fails validation.
	ErrCorruptIndex = errors.New("corrupt index document")
	// ErrDanglingParent reports a parent_id naming no node of the snapshot.
	ErrDanglingParent = errors.New("parent does not exist")
	// ErrDuplicateUUID reports two nodes sharing an identity.
	ErrDuplicateUUID = errors.New("duplicate node uuid")
	// ErrCycle reports a parent chain that never reaches the root shelf.
	ErrCycle = errors.New("parent chain forms a cycle")
	// ErrNodeNotFound reports an unknown uuid.
	ErrNodeNotFound = errors.New("node not found")
	// ErrRootParent reports a node that reuses the reserved root identity or
	// is its own parent.
	ErrRootParent = errors.New("node cannot take the root identity")
	// ErrNotContainer reports a parent that cannot hold children.
	ErrNotContainer = errors.New("parent is not a shelf or folder")
	// ErrInvalidNode reports a missing node, an unknown node type, or an
	// attachment that the node's type cannot own.
	ErrInvalidNode = errors.New("invalid node")
)

// IsInvariantViolation reports whether err was caused by a tree invariant
// rather than by storage.
func IsInvariantViolation(err error) bool {
	for _, target := range []error{
		ErrDanglingParent, ErrDuplicateUUID, ErrCycle,
		ErrRootParent, ErrNotContainer, ErrInvalidNode,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
