package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/raindrop-digest/internal/journal"
)

func newHistoryCmd(stdout io.Writer) *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "history ITEM_ID",
		Short: "Show the recorded outcomes of a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			if journalPath == "" {
				return fmt.Errorf("no journal configured (set --journal or JOURNAL_PATH)")
			}

			j, err := journal.Open(journalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			records, err := j.History(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(stdout, "No runs recorded for item %d\n", itemID)
				return nil
			}

			w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTATUS\tREASON\tERROR")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.RunID, r.Status, r.Reason, r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", os.Getenv("JOURNAL_PATH"), "path to the run journal")
	return cmd
}
