package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/logo-cli/internal/cache"
	"github.com/sells-group/logo-cli/internal/model"
	"github.com/sells-group/logo-cli/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the backup logo index",
}

// -- index list --

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed logos",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("index"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.ListEntries(ctx, store.EntryFilter{SourceKind: model.SourceKind(kind), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "index list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No logos indexed.")
			return nil
		}

		formatEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

// -- index forget --

var indexForgetCmd = &cobra.Command{
	Use:   "forget <company>",
	Short: "Drop a company's index entry and backup files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("index"); err != nil {
			return err
		}
		ctx := cmd.Context()
		name := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deleted, err := st.DeleteEntry(ctx, model.NormalizeKey(name))
		if err != nil {
			return eris.Wrap(err, "index forget")
		}
		removed, err := cache.RemovePrefix(cfg.Cache.BackupDir, model.FileStem(name))
		if err != nil {
			return eris.Wrap(err, "index forget")
		}

		w := cmd.OutOrStdout()
		if !deleted && len(removed) == 0 {
			_, _ = fmt.Fprintf(w, "Nothing stored for %q.\n", name)
			return nil
		}
		_, _ = fmt.Fprintf(w, "Forgot %q: index entry removed=%t, backup files removed=%d\n", name, deleted, len(removed))
		for _, f := range removed {
			_, _ = fmt.Fprintf(w, "  %s\n", f)
		}
		return nil
	},
}

func init() {
	addIndexListFlags(indexListCmd)

	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexForgetCmd)
	rootCmd.AddCommand(indexCmd)
}

func addIndexListFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "filter by source kind (fetched, cached, placeholder)")
	cmd.Flags().Int("limit", 100, "max number of entries to display")
}

// formatEntries writes a tabular list of index entries to w.
func formatEntries(out io.Writer, entries []model.IndexEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tFILE\tKIND\tDOMAIN\tUPDATED")
	_, _ = fmt.Fprintln(w, "-------\t----\t----\t------\t-------")

	for _, e := range entries {
		company := e.CompanyName
		if len(company) > 30 {
			company = company[:27] + "..."
		}
		domain := e.Domain
		if domain == "" {
			domain = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			company,
			e.FileName,
			e.SourceKind,
			domain,
			e.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
