package main

import (
	"fmt"
	"text/tabwriter"

	"management/backend/internal/api/handler"
	"management/backend/internal/routing"

	"github.com/spf13/cobra"
)

func newRoutesCmd() *cobra.Command {
	var resolve string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the HTTP and WebSocket route tables",
		Long: `Print both route tables in resolution order. With --resolve, print the
route a path resolves to and its captured parameters instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := handler.NewHandler(nil, nil, nil)
			out := cmd.OutOrStdout()

			if resolve != "" {
				for _, t := range []struct {
					kind  string
					table *routing.Table[handler.View]
				}{{"ws", h.WSRoutes}, {"http", h.HTTPRoutes}} {
					if m, ok := t.table.Resolve(resolve); ok {
						fmt.Fprintf(out, "%s %s %v\n", t.kind, m.Route.Name, map[string]string(m.Params))
						return nil
					}
				}
				return fmt.Errorf("no route matches %q", resolve)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tPATTERN")
			for _, r := range h.WSRoutes.Routes() {
				fmt.Fprintf(w, "ws\t%s\t%s\n", r.Name, r.Pattern)
			}
			for _, r := range h.HTTPRoutes.Routes() {
				fmt.Fprintf(w, "http\t%s\t%s\n", r.Name, r.Pattern)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&resolve, "resolve", "", "resolve a path instead of listing the tables")
	return cmd
}
