package cmd

import (
	"context"
	"fmt"

	"github.com/ccsi/dmflite/pkg/core"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Commands to manage folders",
	Long:  `Commands to create, rename, list, import and download folders of a repository.`,
}

var folderCreate = &cobra.Command{
	Use:     "create <path>",
	Short:   "Create a folder",
	Example: `% dmflite folder create /u1/Simulation/run-42 --description "run 42"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			id, err := repo.CreateFolder(ctx, args[0], model.BaseName(args[0]), dmfFlags.object.Description)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var folderEdit = &cobra.Command{
	Use:   "edit <path>",
	Short: "Rename a folder or change its description",
	Long: `Rename a folder or change its description.

Objects below a renamed folder keep their identifiers. System folders cannot be renamed.`,
	Example: `% dmflite folder edit /u1/Simulation/run-42 --name run-43 --description "run 43"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			description := dmfFlags.object.Description
			if !cmd.Flags().Changed("description") {
				current, err := repo.GetLatestMeta(ctx, args[0])
				if err != nil {
					return err
				}
				description = current.Description
			}
			return repo.EditFolderMeta(ctx, args[0], dmfFlags.object.Name, description)
		})
	},
}

var folderList = &cobra.Command{
	Use:   "list [path]",
	Short: "List tracked objects",
	Long:  `List the tracked objects at or below a folder, or the whole repository.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var root string
		if len(args) > 0 {
			root = args[0]
		}
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			paths, err := repo.Paths(ctx, root)
			if err != nil {
				return err
			}
			for _, pth := range paths {
				ref, err := repo.GetDMFID(ctx, pth)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", pth, ref)
			}
			return nil
		})
	},
}

var folderImport = &cobra.Command{
	Use:   "import <directory> <parent path>",
	Short: "Import a local directory",
	Long: `Import a local directory and all its content below a folder of the repository.

Every file is uploaded as a new document, with its mimetype guessed from its extension.`,
	Example: `% dmflite folder import ./results /u1/Simulation`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			id, err := repo.ImportFolder(ctx, args[0], args[1], dmfFlags.object.Description)
			if id != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		})
	},
}

var folderDownload = &cobra.Command{
	Use:   "download <path> <directory>",
	Short: "Download the current content of a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			if err := repo.DownloadFolder(ctx, args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("downloaded to"), args[1])
			return nil
		})
	},
}

func init() {
	addDescriptionFlag(folderCreate)
	folderCmd.AddCommand(folderCreate)

	addNameFlag(folderEdit)
	addDescriptionFlag(folderEdit)
	folderCmd.AddCommand(folderEdit)

	folderCmd.AddCommand(folderList)

	addDescriptionFlag(folderImport)
	folderCmd.AddCommand(folderImport)

	folderCmd.AddCommand(folderDownload)

	rootCmd.AddCommand(folderCmd)
}
