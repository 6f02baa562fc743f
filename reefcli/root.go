// Package reefcli implements the cobra-based command tree a reef server
// binary mounts its bundle under: serve, describe, and lint-bundle.
// Grounded on the teacher pack's own blueprint command trees (e.g.
// blueprints/cms/cli's Execute/NewServe/NewInit), which build one
// *cobra.Command per subcommand and aggregate them under a root Execute
// function, and on theRebelliousNerd-codenerd's cobra-plus-yaml.v3 CLI
// layering for describe's structured output.
package reefcli

import (
	"context"
	"fmt"

	"github.com/go-mizu/reef/bundle"
	"github.com/spf13/cobra"
)

// BundleBuilder constructs the bundle a reefcli command tree operates on.
// It is supplied by the binary embedding reefcli, since this package has no
// knowledge of any concrete resource.
type BundleBuilder func() (*bundle.Bundle, error)

// Execute builds the root command for name, wired to build, and runs it
// against ctx.
func Execute(ctx context.Context, name string, build BundleBuilder) error {
	root := &cobra.Command{
		Use:           name,
		Short:         fmt.Sprintf("%s: a reef bundle server", name),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(NewServeCmd(build))
	root.AddCommand(NewDescribeCmd(build))
	root.AddCommand(NewLintBundleCmd(build))
	root.SetContext(ctx)
	return root.Execute()
}
