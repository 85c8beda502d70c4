package shelf

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/vctfence/scrapbee/pkg/model"
)

// Digest returns the SHA-256 of the canonical (RFC 8785) JSON form of the
// node collection. Two snapshots with the same nodes in the same order
// have the same digest regardless of key order or number formatting.
func (s *Store) Digest() (string, error) {
	data, err := json.Marshal(model.NodeContainer{Nodes: s.nodes})
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
