package cmd

import (
	"context"
	"fmt"

	"github.com/ccsi/dmflite/pkg/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var purgeDryRun bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete stored content referenced by no version",
	Long: `Delete stored content which no version of any object refers to.

Such content is left over by interrupted uploads. Content of pending batch uploads is kept.`,
	Example: `% dmflite purge --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			report, err := repo.PurgeBlobs(ctx, purgeDryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			verb := "deleted"
			if purgeDryRun {
				verb = "would delete"
			}
			for _, checksum := range report.Unreferenced {
				_, _ = fmt.Fprintf(out, "%s %s\n", color.YellowString(verb), checksum)
			}
			_, _ = fmt.Fprintf(out, "%d blobs scanned, %d kept, %d unreferenced\n", report.Scanned, report.Kept, len(report.Unreferenced))
			return nil
		})
	},
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "Only list the content which would be deleted")
	rootCmd.AddCommand(purgeCmd)
}
