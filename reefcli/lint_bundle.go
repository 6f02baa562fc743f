package reefcli

import (
	"fmt"

	"github.com/go-mizu/reef/address"
	"github.com/spf13/cobra"
)

// NewLintBundleCmd creates the "lint-bundle" command: it builds the bundle
// and walks every resource and endpoint it resolves to, reporting structural
// problems that would otherwise only surface as a runtime dispatch failure —
// a resource with no identifier field, an endpoint with no declared
// responses, or two endpoints sharing one route address.
func NewLintBundleCmd(build BundleBuilder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint-bundle",
		Short: "Check the bundle for structural problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := build()
			if err != nil {
				return fmt.Errorf("build bundle: %w", err)
			}

			var problems []string
			seen := map[string]string{}

			resources := b.EnumerateResources(address.Address{})
			for _, re := range resources {
				if re.Resource.IDField.Name == "" {
					problems = append(problems, fmt.Sprintf("resource %q: no identifier field", re.Resource.Name))
				}
			}

			routes := b.EnumerateEndpoints(address.Address{})
			for _, route := range routes {
				if len(route.Endpoint.Responses) == 0 {
					problems = append(problems, fmt.Sprintf("endpoint %s.%s: no declared responses", route.Resource.Name, route.Endpoint.Name))
				}
				key := route.Address.Render(address.MaskRoute, "", "")
				if prior, ok := seen[key]; ok {
					problems = append(problems, fmt.Sprintf("route %q: endpoint %s.%s collides with %s", key, route.Resource.Name, route.Endpoint.Name, prior))
					continue
				}
				seen[key] = fmt.Sprintf("%s.%s", route.Resource.Name, route.Endpoint.Name)
			}

			cmd.Printf("%d resource(s), %d endpoint(s) checked\n", len(resources), len(routes))
			if len(problems) == 0 {
				cmd.Println("no problems found")
				return nil
			}
			for _, p := range problems {
				cmd.Println("- " + p)
			}
			return fmt.Errorf("%d problem(s) found", len(problems))
		},
	}

	return cmd
}
