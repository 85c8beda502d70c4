// Command scrapbee manages a cloud bookmark shelf: a tree of folders,
// bookmarks, archived pages and notes kept in a single index document on a
// remote blob store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vctfence/scrapbee/pkg/blob"
)

// Exit codes.
const (
	exitOK            = 0
	exitFailure       = 1
	exitNotAuthorized = 3
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run executes the command line in args (program name first) and returns
// the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args[1:])
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	a.close()
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	if blob.IsNotAuthorized(err) {
		_, _ = fmt.Fprintln(stderr, "check the storage credentials in the scrapbee configuration")
		return exitNotAuthorized
	}
	return exitFailure
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "scrapbee",
		Short:         "Manage a cloud bookmark shelf",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.flags.configPath, "config", "", "config file (default is $HOME/.config/scrapbee/config.yaml)")
	root.PersistentFlags().StringVar(&a.flags.backend, "backend", "", "override backend.type")
	root.PersistentFlags().StringVar(&a.flags.dir, "dir", "", "override backend.fs.dir")
	root.PersistentFlags().BoolVar(&a.flags.strict, "strict", false, "fail on a malformed index instead of starting empty")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newStatCmd(a),
		newTreeCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newMkgroupCmd(a),
		newRmCmd(a),
		newArchiveCmd(a),
		newNotesCmd(a),
		newExportCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}
