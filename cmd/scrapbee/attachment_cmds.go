package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/vctfence/scrapbee/pkg/attachment"
)

func newArchiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Read or write the archived content of a node",
	}

	var output string
	get := &cobra.Command{
		Use:   "get <uuid>",
		Short: "Print the archived content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			node, err := store.Node(args[0])
			if err != nil {
				return err
			}
			data, err := store.ReadArchiveBytes(cmd.Context(), node.UUID)
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("node %s has no archived content", node.UUID)
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			//nolint:gosec // G306: archived pages are user documents
			return os.WriteFile(output, data, 0644)
		},
	}
	get.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	var contentType string
	put := &cobra.Command{
		Use:   "put <uuid> <file>",
		Short: "Store a file as the archived content and save the index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			node, err := store.Node(args[0])
			if err != nil {
				return err
			}
			ct := contentType
			if ct == "" {
				ct = detectContentType(args[1], data)
			}
			if isHTML(ct) && utf8.Valid(data) {
				err = store.StoreArchive(cmd.Context(), node, string(data))
			} else {
				err = store.StoreArchiveBytes(cmd.Context(), node, data, ct)
			}
			if err != nil {
				return err
			}
			return store.Save(cmd.Context())
		},
	}
	put.Flags().StringVar(&contentType, "type", "", "content type (detected when empty)")

	cmd.AddCommand(get, put)
	return cmd
}

func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == attachment.TypeHTML
}

func newNotesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Read or write the notes of a node",
	}

	get := &cobra.Command{
		Use:   "get <uuid>",
		Short: "Print the notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			node, err := store.Node(args[0])
			if err != nil {
				return err
			}
			notes, err := store.ReadNotes(cmd.Context(), node.UUID)
			if err != nil {
				return err
			}
			if notes == nil {
				return fmt.Errorf("node %s has no notes", node.UUID)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), notes.Content)
			return err
		},
	}

	set := &cobra.Command{
		Use:   "set <uuid> <text|->",
		Short: "Replace the notes and save the index; - reads stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[1]
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimRight(string(data), "\n")
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			node, err := store.Node(args[0])
			if err != nil {
				return err
			}
			if err := store.StoreNotes(cmd.Context(), node, text); err != nil {
				return err
			}
			return store.Save(cmd.Context())
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
