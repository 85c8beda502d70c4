package shelf

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vctfence/scrapbee/pkg/model"
)

// encodeIndex renders the two-line index document: the meta record, then
// the node container. containerExtra carries unrecognized members of the
// container record read by decodeIndex.
func encodeIndex(meta *model.Meta, nodes []*model.Node, containerExtra map[string]json.RawMessage) ([]byte, error) {
	metaLine, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	nodesLine, err := json.Marshal(model.NodeContainer{Nodes: nodes, Extra: containerExtra})
	if err != nil {
		return nil, fmt.Errorf("encode nodes: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(metaLine) + len(nodesLine) + 1)
	buf.Write(metaLine)
	buf.WriteByte('\n')
	buf.Write(nodesLine)
	return buf.Bytes(), nil
}

// decodeIndex parses an index document into its meta record and node
// container. A document holding only the meta line has an empty container.
// In strict mode every record is checked against the index schema and
// trailing records are rejected.
func decodeIndex(data []byte, strict bool) (*model.Meta, *model.NodeContainer, error) {
	lines := splitRecords(data)
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("empty index document")
	}
	if strict {
		if err := loadSchemas(); err != nil {
			return nil, nil, err
		}
		if err := validateLine(compiledMeta, lines[0]); err != nil {
			return nil, nil, fmt.Errorf("meta record: %w", err)
		}
		if len(lines) > 1 {
			if err := validateLine(compiledNodes, lines[1]); err != nil {
				return nil, nil, fmt.Errorf("node record: %w", err)
			}
		}
		if len(lines) > 2 {
			return nil, nil, fmt.Errorf("unexpected record on line 3")
		}
	}

	var meta model.Meta
	if err := json.Unmarshal(lines[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("decode meta: %w", err)
	}
	if len(lines) == 1 {
		return &meta, &model.NodeContainer{}, nil
	}

	var container model.NodeContainer
	if err := json.Unmarshal(lines[1], &container); err != nil {
		return nil, nil, fmt.Errorf("decode nodes: %w", err)
	}
	nodes := make([]*model.Node, 0, len(container.Nodes))
	for _, n := range container.Nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	container.Nodes = nodes
	return &meta, &container, nil
}

// splitRecords splits on newlines, dropping carriage returns and blank
// lines.
func splitRecords(data []byte) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out
}
