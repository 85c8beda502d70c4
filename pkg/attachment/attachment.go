// Package attachment implements the wire formats of the per-node blobs that
// live beside the index document: archived content, notes and the rendered
// notes view.
package attachment

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Kind is the suffix of an attachment blob name.
type Kind string

const (
	KindData     Kind = "data"
	KindNotes    Kind = "notes"
	KindView     Kind = "view"
	KindComments Kind = "comments"
)

// Name returns the blob name of the attachment of kind owned by uuid.
func Name(uuid string, kind Kind) string {
	return uuid + "." + string(kind)
}

const (
	// TypeHTML is the MIME type of archived pages.
	TypeHTML = "text/html"
	// FormatText is the only notes format produced by this client.
	FormatText = "text"
)

// Archive is the payload of a .data blob. Object holds UTF-8 text when
// ByteLength is nil and base64 encoded bytes otherwise.
type Archive struct {
	Object     string `json:"object"`
	Type       string `json:"type,omitempty"`
	ByteLength *int64 `json:"byte_length,omitempty"`
}

// NewTextArchive wraps text content.
func NewTextArchive(text, contentType string) *Archive {
	return &Archive{Object: text, Type: contentType}
}

// NewBinaryArchive wraps raw bytes, base64 encoding them.
func NewBinaryArchive(data []byte, contentType string) *Archive {
	n := int64(len(data))
	return &Archive{
		Object:     base64.StdEncoding.EncodeToString(data),
		Type:       contentType,
		ByteLength: &n,
	}
}

// IsBinary reports whether Object carries base64 content.
func (a *Archive) IsBinary() bool {
	return a.ByteLength != nil
}

// Bytes returns the archived content as raw bytes.
func (a *Archive) Bytes() ([]byte, error) {
	if !a.IsBinary() {
		return []byte(a.Object), nil
	}
	data, err := base64.StdEncoding.DecodeString(a.Object)
	if err != nil {
		return nil, fmt.Errorf("decode archive object: %w", err)
	}
	return data, nil
}

// EncodeArchive returns the JSON form of a.
func EncodeArchive(a *Archive) ([]byte, error) {
	return marshal(a)
}

// DecodeArchive parses a .data blob.
func DecodeArchive(data []byte) (*Archive, error) {
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if !a.IsBinary() && !utf8.ValidString(a.Object) {
		return nil, fmt.Errorf("decode archive: text object is not valid UTF-8")
	}
	return &a, nil
}

// Notes is the payload of a .notes blob.
type Notes struct {
	Content string `json:"content"`
	Format  string `json:"format"`
}

// NewTextNotes wraps plain text notes.
func NewTextNotes(text string) *Notes {
	return &Notes{Content: text, Format: FormatText}
}

// EncodeNotes returns the JSON form of n.
func EncodeNotes(n *Notes) ([]byte, error) {
	return marshal(n)
}

// DecodeNotes parses a .notes blob.
func DecodeNotes(data []byte) (*Notes, error) {
	var n Notes
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}
	return &n, nil
}

// marshal encodes v without escaping HTML, so archived markup stays readable
// in the stored blob.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
