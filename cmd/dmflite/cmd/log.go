package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ccsi/dmflite/pkg/core"
	"github.com/ccsi/dmflite/pkg/model"
	"github.com/ccsi/dmflite/pkg/report"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [path]",
	Short: "Show the history of the repository or of an object",
	Long: `Show the history of the whole repository in commit order, or the history of one object,
most recent first.

With --export, the history is written as a spreadsheet instead.`,
	Example: `% dmflite log /u1/Simulation/model.txt
% dmflite log --export history.xlsx`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			var (
				entries []model.HistoryEntry
				err     error
			)
			if len(args) > 0 {
				entries, err = repo.History(ctx, args[0])
			} else {
				entries, err = repo.Log(ctx)
			}
			if err != nil {
				return err
			}
			if dmfFlags.log.Export != "" {
				return exportHistory(cmd, dmfFlags.log.Export, entries)
			}
			for _, e := range entries {
				printEntry(cmd, e)
			}
			return nil
		})
	},
}

func printEntry(cmd *cobra.Command, e model.HistoryEntry) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s %s\n", color.YellowString("entry"), e.Token)
	_, _ = fmt.Fprintf(out, "Author: %s\n", e.Author.String())
	_, _ = fmt.Fprintf(out, "Date:   %s\n", e.Timestamp.Format("2006-01-02 15:04:05 -0700"))
	_, _ = fmt.Fprintf(out, "\n    %s: %s\n", e.Action, e.Path)
	if !e.Record.Folder {
		_, _ = fmt.Fprintf(out, "    version %s\n", e.Record.Version)
	}
	if e.Record.CheckInComment != "" {
		_, _ = fmt.Fprintf(out, "    %s\n", e.Record.CheckInComment)
	}
	_, _ = fmt.Fprintln(out)
}

func exportHistory(cmd *cobra.Command, target string, entries []model.HistoryEntry) (err error) {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = report.WriteHistory(f, entries); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries to %s\n", color.GreenString("exported"), len(entries), target)
	return nil
}

func init() {
	addExportFlag(logCmd)
	rootCmd.AddCommand(logCmd)
}
