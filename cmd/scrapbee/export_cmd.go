package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vctfence/scrapbee/pkg/model"
	"github.com/vctfence/scrapbee/pkg/shelf"
)

// exportNode is the nested form of a node written by export.
type exportNode struct {
	UUID     string        `json:"uuid" yaml:"uuid"`
	Type     string        `json:"type" yaml:"type"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	URI      string        `json:"uri,omitempty" yaml:"uri,omitempty"`
	Tags     string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	Todo     string        `json:"todo,omitempty" yaml:"todo,omitempty"`
	Details  string        `json:"details,omitempty" yaml:"details,omitempty"`
	Added    int64         `json:"date_added,omitempty" yaml:"date_added,omitempty"`
	Notes    bool          `json:"has_notes,omitempty" yaml:"has_notes,omitempty"`
	Children []*exportNode `json:"children,omitempty" yaml:"children,omitempty"`
}

type exportDoc struct {
	Cloud     string        `json:"cloud" yaml:"cloud"`
	Version   int64         `json:"version" yaml:"version"`
	Timestamp int64         `json:"timestamp" yaml:"timestamp"`
	Nodes     []*exportNode `json:"nodes" yaml:"nodes"`
}

func newExportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the shelf as a nested tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			doc := buildExport(store)

			var out []byte
			switch strings.ToLower(format) {
			case "json":
				out, err = json.MarshalIndent(doc, "", "  ")
				out = append(out, '\n')
			case "yaml", "yml":
				out, err = yaml.Marshal(doc)
			default:
				return fmt.Errorf("unknown export format %q (want json or yaml)", format)
			}
			if err != nil {
				return fmt.Errorf("failed to marshal export: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}

func buildExport(store *shelf.Store) *exportDoc {
	meta := store.Meta()
	seen := map[string]bool{}
	var walk func(parent string) []*exportNode
	walk = func(parent string) []*exportNode {
		var out []*exportNode
		for _, n := range store.Children(parent) {
			k := strings.ToUpper(n.UUID)
			if seen[k] {
				continue
			}
			seen[k] = true
			e := toExport(n)
			if n.IsContainer() {
				e.Children = walk(n.UUID)
			}
			out = append(out, e)
		}
		return out
	}
	nodes := walk(model.CloudShelfUUID)
	if nodes == nil {
		nodes = []*exportNode{}
	}
	return &exportDoc{Cloud: meta.Cloud, Version: meta.Version, Timestamp: meta.Timestamp, Nodes: nodes}
}

func toExport(n *model.Node) *exportNode {
	e := &exportNode{
		UUID:    n.UUID,
		Type:    string(n.Type),
		Name:    n.Name,
		URI:     n.URI,
		Tags:    n.Tags,
		Details: n.Details,
		Notes:   n.NotesAttached(),
	}
	if n.TodoState != nil {
		e.Todo = n.TodoState.String()
	}
	if n.DateAdded != nil {
		e.Added = *n.DateAdded
	}
	return e
}
