package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// FormatName identifies the producer of the index document.
	FormatName = "JSON Scrapbook"
	// SchemaVersion is the index schema version written by this client.
	SchemaVersion int64 = 1
)

var metaFieldOrder = []string{"cloud", "version", "timestamp"}

// Meta is the first record of the index document.
type Meta struct {
	Cloud     string `json:"cloud"`
	Version   int64  `json:"version"`
	Timestamp int64  `json:"timestamp"`

	Extra map[string]json.RawMessage `json:"-"`
}

type metaFields Meta

// NewMeta returns a meta record for an empty document created at now.
func NewMeta(now time.Time) *Meta {
	return &Meta{
		Cloud:     FormatName,
		Version:   SchemaVersion,
		Timestamp: now.UnixMilli(),
	}
}

func (m Meta) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(metaFields(m))
	if err != nil {
		return nil, err
	}
	return appendExtra(data, m.Extra, metaFieldOrder)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var fields metaFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownFields(data, metaFieldOrder)
	if err != nil {
		return err
	}
	*m = Meta(fields)
	m.Extra = extra
	return nil
}

// Time returns the last serialization time.
func (m *Meta) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// NodeContainer is the second record of the index document.
type NodeContainer struct {
	Nodes []*Node `json:"nodes"`

	Extra map[string]json.RawMessage `json:"-"`
}

type containerFields NodeContainer

var containerFieldOrder = []string{"nodes"}

func (c NodeContainer) MarshalJSON() ([]byte, error) {
	fields := containerFields(c)
	if fields.Nodes == nil {
		fields.Nodes = []*Node{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return appendExtra(data, c.Extra, containerFieldOrder)
}

func (c *NodeContainer) UnmarshalJSON(data []byte) error {
	var fields containerFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownFields(data, containerFieldOrder)
	if err != nil {
		return err
	}
	*c = NodeContainer(fields)
	c.Extra = extra
	return nil
}

// NewUUID returns a fresh node identifier: 32 upper-case hex digits.
func NewUUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
