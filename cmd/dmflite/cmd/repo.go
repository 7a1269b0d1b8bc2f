package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ccsi/dmflite/pkg/core"
	"github.com/ccsi/dmflite/pkg/dlogger"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openRepo opens the repository designated by the configuration
func openRepo(ctx context.Context) (*core.Repo, error) {
	root, err := filepath.Abs(viper.GetString(rootKey))
	if err != nil {
		return nil, err
	}
	logger, err := dlogger.GetLogger(logLevel())
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return core.Open(ctx, root, viper.GetString(userKey),
		core.Logger(logger),
		core.WithTimeout(viper.GetDuration(timeoutKey)),
		core.CacheSize(viper.GetInt(cacheSizeKey)),
	)
}

// withRepo runs some action against the repository, and closes it
func withRepo(action func(context.Context, *core.Repo) error) error {
	ctx := context.Background()
	repo, err := openRepo(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()
	return action(ctx, repo)
}

// selectedVersion is the version given by flag, or the latest version of a document
func selectedVersion(ctx context.Context, repo *core.Repo, pth string) (model.Version, error) {
	if dmfFlags.object.Version != "" {
		return model.ParseVersion(dmfFlags.object.Version)
	}
	return repo.GetLatestVersion(ctx, pth)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a repository",
	Long: `Initialize a repository and the namespace of the user.

The namespace folder of the user is created with the system folders Simulation and Sorbentfit.
Initializing an existing repository is harmless.`,
	Example: `% dmflite init --root ./store --user u1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			d := repo.Descriptor()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (layout v%d, created %s by %s)\n",
				color.GreenString("repository ready:"), repo.Root(), d.Version, d.Timestamp.Format("2006-01-02 15:04:05"), d.User)
			return nil
		})
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the index from the history",
	Long: `Drop the index and replay the whole history.

The history is the source of truth: the index may be rebuilt at any time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			n, err := repo.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d history entries\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(rebuildCmd)
}
