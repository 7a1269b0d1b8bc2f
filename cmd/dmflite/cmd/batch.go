package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/ccsi/dmflite/pkg/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// manifestItem describes one object of a batch upload manifest
type manifestItem struct {
	Folder       string   `yaml:"folder,omitempty"`
	File         string   `yaml:"file,omitempty"`
	Path         string   `yaml:"path,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Mimetype     string   `yaml:"mimetype,omitempty"`
	Confidence   string   `yaml:"confidence,omitempty"`
	Dependencies []string `yaml:"depends,omitempty"`
	Comment      string   `yaml:"comment,omitempty"`
}

func readManifest(manifest string) ([]core.BatchUpload, error) {
	data, err := ioutil.ReadFile(manifest)
	if err != nil {
		return nil, err
	}
	var items []manifestItem
	if err = yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", manifest, err)
	}

	base := filepath.Dir(manifest)
	uploads := make([]core.BatchUpload, 0, len(items))
	for _, item := range items {
		if item.Folder != "" {
			uploads = append(uploads, core.BatchUpload{Folder: &core.FolderRequest{
				Path:        item.Folder,
				Description: item.Description,
			}})
			continue
		}
		local := item.File
		if !filepath.IsAbs(local) {
			local = filepath.Join(base, local)
		}
		content, err := ioutil.ReadFile(local)
		if err != nil {
			return nil, err
		}
		deps, err := parseRefs(item.Dependencies)
		if err != nil {
			return nil, err
		}
		mimetype := item.Mimetype
		if mimetype == "" {
			mimetype = core.MimetypeOf(local)
		}
		uploads = append(uploads, core.BatchUpload{Document: &core.DocumentRequest{
			Bytes:          content,
			Path:           item.Path,
			OriginalName:   filepath.Base(local),
			Description:    item.Description,
			Mimetype:       mimetype,
			Confidence:     item.Confidence,
			Dependencies:   deps,
			CheckInComment: item.Comment,
		}})
	}
	return uploads, nil
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Commands to upload several objects at once",
	Long: `Commands to upload several objects at once.

A batch is journaled before any object is committed. When a batch is interrupted,
"batch reconcile" commits the remaining objects.`,
}

var batchUpload = &cobra.Command{
	Use:   "upload <manifest>",
	Short: "Upload the objects listed in a YAML manifest, in order",
	Example: `% cat run.yaml
- folder: /u1/Simulation/run-42
  description: run 42
- file: ./input.txt
  path: /u1/Simulation/run-42/input.txt
% dmflite batch upload run.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uploads, err := readManifest(args[0])
		if err != nil {
			return err
		}
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			b, err := repo.UploadBatch(ctx, uploads)
			if b != nil {
				printBatch(cmd, b)
			}
			return err
		})
	},
}

var batchList = &cobra.Command{
	Use:   "list",
	Short: "List batch uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			batches, err := repo.Batches(ctx)
			if err != nil {
				return err
			}
			for _, b := range batches {
				printBatch(cmd, b)
			}
			return nil
		})
	},
}

var batchReconcile = &cobra.Command{
	Use:   "reconcile",
	Short: "Complete interrupted batch uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			batches, err := repo.Reconcile(ctx)
			for _, b := range batches {
				printBatch(cmd, b)
			}
			return err
		})
	},
}

func printBatch(cmd *cobra.Command, b *core.Batch) {
	out := cmd.OutOrStdout()
	state := color.GreenString("complete")
	if !b.Complete {
		state = color.RedString("incomplete")
	}
	_, _ = fmt.Fprintf(out, "batch %s %s (%s)\n", b.ID, state, b.Timestamp.Format("2006-01-02 15:04:05"))
	for _, item := range b.Items {
		line := fmt.Sprintf("  %-9s %s", item.State, item.Path)
		if item.Ref != "" {
			line += " " + item.Ref
		}
		if item.Error != "" {
			line += " " + color.RedString(item.Error)
		}
		_, _ = fmt.Fprintln(out, line)
	}
}

func init() {
	batchCmd.AddCommand(batchUpload)
	batchCmd.AddCommand(batchList)
	batchCmd.AddCommand(batchReconcile)
	rootCmd.AddCommand(batchCmd)
}
