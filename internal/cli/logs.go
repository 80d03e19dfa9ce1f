package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tuncerburak97/gozcu/internal/model"
)

func newLogsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse captured records",
	}
	cmd.AddCommand(newLogsListCmd(e), newLogsShowCmd(e), newLogsDeleteCmd(e))
	return cmd
}

func newLogsListCmd(e *env) *cobra.Command {
	var (
		limit  int
		offset int
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := model.Filter{Limit: limit, Offset: offset}
			switch status {
			case "":
			case "success", "failure":
				ok := status == "success"
				filter.Status = &ok
			default:
				return fmt.Errorf("invalid status %q: use success or failure", status)
			}

			repo, err := e.openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			items, err := repo.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if e.jsonOutput {
				return e.printJSON(cmd.OutOrStdout(), items)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tURL")
			for _, s := range items {
				word := model.StatusFailure
				if s.Status {
					word = model.StatusSuccess
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format(time.RFC3339), word, s.URL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", model.DefaultListLimit, "maximum number of records")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of records to skip")
	cmd.Flags().StringVar(&status, "status", "", "only success or failure records")
	return cmd
}

func newLogsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one record with its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := e.openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			rec, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if e.jsonOutput {
				return e.printJSON(cmd.OutOrStdout(), rec)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, rec.Title)
			fmt.Fprintf(out, "id: %s\ncreated: %s\n", rec.ID, rec.CreatedAt.Format(time.RFC3339Nano))
			for _, name := range fieldOrder(rec.Fields) {
				fmt.Fprintf(out, "\n[%s]\n%s\n", name, rec.Fields[name])
			}
			return nil
		},
	}
}

// fieldOrder lists the known fields in display order, then any others sorted.
func fieldOrder(fields map[string]string) []string {
	seen := make(map[string]bool, len(fields))
	var names []string
	for _, name := range model.FieldNames {
		if _, ok := fields[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range fields {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func newLogsDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := e.openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
