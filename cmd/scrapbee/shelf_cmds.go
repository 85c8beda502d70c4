package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vctfence/scrapbee/pkg/model"
	"github.com/vctfence/scrapbee/pkg/query"
	"github.com/vctfence/scrapbee/pkg/share"
	"github.com/vctfence/scrapbee/pkg/shelf"
)

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Show the index document header, node counts and digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			meta := store.Meta()
			digest, err := store.Digest()
			if err != nil {
				return err
			}

			counts := map[model.NodeType]int{}
			nodes := store.Nodes()
			for _, n := range nodes {
				counts[n.Type]++
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "format:    %s v%d\n", meta.Cloud, meta.Version)
			_, _ = fmt.Fprintf(w, "saved:     %s\n", meta.Time().UTC().Format("2006-01-02 15:04:05 MST"))
			_, _ = fmt.Fprintf(w, "nodes:     %d\n", len(nodes))
			for _, t := range []model.NodeType{model.TypeGroup, model.TypeBookmark, model.TypeArchive, model.TypeNotes, model.TypeSeparator} {
				if counts[t] > 0 {
					_, _ = fmt.Fprintf(w, "  %-10s %d\n", t, counts[t])
				}
			}
			_, _ = fmt.Fprintf(w, "digest:    %s\n", digest)
			return nil
		},
	}
}

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [uuid]",
		Short: "Print the shelf, or the subtree of a node, as a tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				printChildren(w, store, model.CloudShelfUUID, 0, map[string]bool{})
				return nil
			}
			node, err := store.Node(args[0])
			if err != nil {
				return err
			}
			printNode(w, node, 0)
			printChildren(w, store, node.UUID, 1, map[string]bool{strings.ToUpper(node.UUID): true})
			return nil
		},
	}
}

func printChildren(w io.Writer, store *shelf.Store, parent string, depth int, seen map[string]bool) {
	for _, child := range store.Children(parent) {
		k := strings.ToUpper(child.UUID)
		if seen[k] {
			continue
		}
		seen[k] = true
		printNode(w, child, depth)
		if child.IsContainer() {
			printChildren(w, store, child.UUID, depth+1, seen)
		}
	}
}

func printNode(w io.Writer, n *model.Node, depth int) {
	label := n.Name
	if n.Type == model.TypeSeparator {
		label = "----"
	}
	line := fmt.Sprintf("%s[%s] %s  %s", strings.Repeat("  ", depth), n.Type, label, n.UUID)
	if n.URI != "" {
		line += "  <" + n.URI + ">"
	}
	if n.TodoState != nil {
		line += "  " + n.TodoState.String()
	}
	_, _ = fmt.Fprintln(w, line)
}

func newListCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List nodes, optionally filtered by a CEL expression",
		Long: `List nodes of the shelf in index order.

Examples:
  scrapbee list --filter 'node.type == "bookmark"'
  scrapbee list --filter 'node.todo_state == 1'
  scrapbee list --filter 'node.uri.contains("github.com")'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			engine, err := query.NewEngine()
			if err != nil {
				return err
			}
			nodes, err := engine.Filter(filter, store.Nodes())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, n := range nodes {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.UUID, n.Type, n.Name, n.URI)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "CEL expression over node")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var req share.Request
	cmd := &cobra.Command{
		Use:   "add [url]",
		Short: "Share a link, text or both into a shelf folder",
		Long: `Share a link, text or both into a shelf folder.

A link becomes a bookmark, text becomes a notes node, and text with a link
becomes an archived page.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.URL = args[0]
			}
			if req.Text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				req.Text = string(data)
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			sharer := share.New(store, share.WithFolder(a.cfg.Store.SharedFolder), share.WithLogger(a.logger))
			node, err := sharer.Share(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), node.UUID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "node title")
	cmd.Flags().StringVar(&req.Text, "text", "", "shared text, - reads stdin")
	cmd.Flags().StringVar(&req.TodoState, "todo", "", "todo state: TODO, WAITING, POSTPONED, DONE, CANCELLED")
	cmd.Flags().StringVar(&req.Details, "details", "", "todo details")
	cmd.Flags().StringVar(&req.Folder, "folder", "", "target folder (default from store.shared_folder)")
	return cmd
}

func newMkgroupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkgroup <path>",
		Short: "Find or create a top-level folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			group, err := store.FindOrCreateGroup(args[0])
			if err != nil {
				return err
			}
			if err := store.Save(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), group.UUID)
			return nil
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <uuid>",
		Short: "Delete a node with all of its descendants and attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := store.Node(args[0]); err != nil {
				return err
			}
			removed := store.DeleteSubtree(cmd.Context(), args[0])
			if err := store.Save(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d node(s)\n", len(removed))
			return nil
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the tree invariants of the index document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Validate(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d node(s)\n", len(store.Nodes()))
			return nil
		},
	}
}
