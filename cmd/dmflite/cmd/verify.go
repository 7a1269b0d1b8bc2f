package cmd

import (
	"context"
	"fmt"

	"github.com/ccsi/dmflite/pkg/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the integrity of the repository",
	Long: `Check that the content of every recorded version is stored and intact,
and that the working tree matches the latest version of each document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			report, err := repo.Verify(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, checksum := range report.Missing {
				_, _ = fmt.Fprintf(out, "%s %s\n", color.RedString("missing content:"), checksum)
			}
			for _, checksum := range report.Corrupt {
				_, _ = fmt.Fprintf(out, "%s %s\n", color.RedString("corrupt content:"), checksum)
			}
			for _, pth := range report.Modified {
				_, _ = fmt.Fprintf(out, "%s %s\n", color.YellowString("modified:"), pth)
			}
			if !report.OK() {
				return fmt.Errorf("verification failed: %d missing, %d corrupt, %d modified",
					len(report.Missing), len(report.Corrupt), len(report.Modified))
			}
			_, _ = fmt.Fprintf(out, "%s %d blobs checked\n", color.GreenString("ok:"), report.Checked)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
