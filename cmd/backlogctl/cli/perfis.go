package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/backlog-dim/backlog-dim/internal/rbac"
)

func newPerfisCmd(withBackend func(*cobra.Command, func(*Backend) error) error, output *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perfis",
		Short: "Inspect profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "efetivas <nome>",
		Short: "Print the effective permissions of a profile, inheritance included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(b *Backend) error {
				grants, err := b.RBAC.ResolveEffectivePermissions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printGrants(cmd.OutOrStdout(), *output, grants)
			})
		},
	})
	return cmd
}

func printGrants(w io.Writer, format string, grants []rbac.Grant) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(grants)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ACAO\tRECURSO\tPERMITIDO")
		for _, g := range grants {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\n", g.Action, g.Resource, g.Granted)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
