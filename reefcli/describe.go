package reefcli

import (
	"encoding/json"
	"fmt"

	"github.com/go-mizu/reef/address"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewDescribeCmd creates the "describe" command: it builds the bundle and
// prints its full (verbose) description, either as JSON (default) or YAML
// via --format=yaml, matching the spec.Specification artifact a remote
// client reconstructs from the same payload. --omit replaces the named
// attributes with a bare field sharing only their name, per spec §9's
// resolution of describe's omissions parameter — useful for publishing a
// description that hides a sensitive field's shape.
func NewDescribeCmd(build BundleBuilder) *cobra.Command {
	var format string
	var omit []string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the bundle's structural description",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := build()
			if err != nil {
				return fmt.Errorf("build bundle: %w", err)
			}
			description := b.Describe(address.Address{}, true, omit)

			switch format {
			case "", "json":
				out, err := json.MarshalIndent(description, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal description: %w", err)
				}
				cmd.Println(string(out))
			case "yaml":
				out, err := yaml.Marshal(description)
				if err != nil {
					return fmt.Errorf("marshal description: %w", err)
				}
				cmd.Print(string(out))
			default:
				return fmt.Errorf("unknown --format %q (want json or yaml)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringSliceVar(&omit, "omit", nil, "Attribute names to replace with a bare field in the description")
	return cmd
}
