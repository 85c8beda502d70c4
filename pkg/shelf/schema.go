package shelf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	metaSchemaURL  = "https://scrapbee.local/schemas/index-meta.schema.json"
	nodesSchemaURL = "https://scrapbee.local/schemas/index-nodes.schema.json"
)

const metaSchema = `{
  "type": "object",
  "required": ["cloud", "version", "timestamp"],
  "properties": {
    "cloud": {"type": "string"},
    "version": {"type": "integer", "minimum": 1},
    "timestamp": {"type": "integer"}
  }
}`

const nodesSchema = `{
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "nodes": {"type": "array", "items": {"$ref": "#/$defs/node"}}
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["uuid", "type"],
      "properties": {
        "name": {"type": "string"},
        "uuid": {"type": "string", "minLength": 1},
        "uri": {"type": "string"},
        "pos": {"type": "integer"},
        "icon": {"type": "string"},
        "parent_id": {"type": "string"},
        "type": {
          "oneOf": [
            {"enum": ["shelf", "folder", "bookmark", "archive", "separator", "notes"]},
            {"type": "integer", "minimum": 1, "maximum": 6}
          ]
        },
        "tags": {"type": "string"},
        "date_added": {"type": "integer"},
        "date_modified": {"type": "integer"},
        "content_modified": {"type": "integer"},
        "todo_state": {"type": "integer", "minimum": 1, "maximum": 5},
        "details": {"type": "string"},
        "todo_date": {"type": "string"},
        "has_notes": {"type": "boolean"},
        "has_comments": {"type": "boolean"},
        "content_type": {"type": "string"},
        "byte_length": {"type": "integer", "minimum": 0},
        "external": {"type": "string"},
        "external_id": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce    sync.Once
	compiledMeta  *jsonschema.Schema
	compiledNodes *jsonschema.Schema
	schemaInitErr error
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(metaSchemaURL, strings.NewReader(metaSchema)); err != nil {
			schemaInitErr = fmt.Errorf("index schema load failed: %w", err)
			return
		}
		if err := c.AddResource(nodesSchemaURL, strings.NewReader(nodesSchema)); err != nil {
			schemaInitErr = fmt.Errorf("index schema load failed: %w", err)
			return
		}
		if compiledMeta, schemaInitErr = c.Compile(metaSchemaURL); schemaInitErr != nil {
			return
		}
		compiledNodes, schemaInitErr = c.Compile(nodesSchemaURL)
	})
	return schemaInitErr
}

// validateLine checks one index record against schema.
func validateLine(schema *jsonschema.Schema, line []byte) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}
