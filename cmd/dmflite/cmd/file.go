package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccsi/dmflite/pkg/core"
	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Commands to manage documents",
	Long: `Commands to upload, edit, inspect and download versioned documents.

Versions are written as major.minor. A document is created at version 1.0.`,
}

func parseRefs(refs []string) ([]model.CompositeRef, error) {
	if refs == nil {
		return nil, nil
	}
	parsed := make([]model.CompositeRef, 0, len(refs))
	for _, ref := range refs {
		r, err := model.ParseRef(strings.TrimSpace(ref))
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, r)
	}
	return parsed, nil
}

var fileUpload = &cobra.Command{
	Use:   "upload <local file> <path>",
	Short: "Upload a document or a new version of a document",
	Long: `Upload a local file as a document.

When the path is already tracked, a new version is created: a minor version by default, a major
version with --major. Content identical to the latest version is not uploaded again.`,
	Example: `% dmflite file upload ./model.txt /u1/Simulation/model.txt --description "baseline"
% dmflite file upload ./model.txt /u1/Simulation/model.txt --major --comment "new solver"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			return err
		}
		deps, err := parseRefs(dmfFlags.object.Dependencies)
		if err != nil {
			return err
		}
		name := filepath.Base(args[0])
		req := core.DocumentRequest{
			Bytes:               data,
			Path:                args[1],
			OriginalName:        dmfFlags.object.OriginalName,
			Description:         dmfFlags.object.Description,
			Mimetype:            dmfFlags.object.Mimetype,
			External:            dmfFlags.object.External,
			Confidence:          dmfFlags.object.Confidence,
			VersionRequirements: dmfFlags.object.VersionRequirements,
			Dependencies:        deps,
			CheckInComment:      dmfFlags.object.Comment,
		}
		if req.OriginalName == "" {
			req.OriginalName = name
		}
		if req.Mimetype == "" {
			req.Mimetype = core.MimetypeOf(name)
		}

		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			_, err := repo.GetDMFID(ctx, req.Path)
			switch {
			case err == nil:
				identical, err := repo.IsFileContentsIdentical(ctx, data, req.Path)
				if err != nil {
					return err
				}
				if identical {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.YellowString("unchanged:"), req.Path)
					return nil
				}
				next, err := repo.GetNewVersion(ctx, req.Path, dmfFlags.object.Major)
				if err != nil {
					return err
				}
				req.Version = &next
				current, err := repo.GetLatestMeta(ctx, req.Path)
				if err != nil {
					return err
				}
				inheritMeta(cmd, &req, current)
			case !errors.Is(err, status.ErrNotFound):
				return err
			}

			ref, err := repo.CreateVersionedDocument(ctx, req)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", ref, units.HumanSize(float64(len(data))))
			return nil
		})
	},
}

// inheritMeta carries over the metadata of the previous version which is not given by flags
func inheritMeta(cmd *cobra.Command, req *core.DocumentRequest, current model.MetadataRecord) {
	flags := cmd.Flags()
	for _, field := range []struct {
		flag string
		dst  *string
		src  string
	}{
		{flag: "description", dst: &req.Description, src: current.Description},
		{flag: "external", dst: &req.External, src: current.External},
		{flag: "confidence", dst: &req.Confidence, src: current.Confidence},
		{flag: "requirements", dst: &req.VersionRequirements, src: current.VersionRequirements},
	} {
		if !flags.Changed(field.flag) {
			*field.dst = field.src
		}
	}
	if !flags.Changed("depends") {
		req.Dependencies = current.Dependencies
	}
}

var fileEdit = &cobra.Command{
	Use:   "edit <path>",
	Short: "Edit the metadata of a document",
	Long: `Edit the metadata of a document, without changing its content.

The edit creates a new minor version. Fields not given keep their current value.
A new name moves the document within its folder.`,
	Example: `% dmflite file edit /u1/Simulation/model.txt --name model-v2.txt --confidence validated`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			current, err := repo.GetLatestMeta(ctx, args[0])
			if err != nil {
				return err
			}
			edit := core.DocumentEdit{
				DisplayName:         dmfFlags.object.Name,
				OriginalName:        current.OriginalName,
				Description:         current.Description,
				Mimetype:            current.Mimetype,
				External:            current.External,
				VersionRequirements: current.VersionRequirements,
				Confidence:          current.Confidence,
				Major:               current.Version.Major,
				MinorBase:           current.Version.Minor,
			}
			flags := cmd.Flags()
			for flag, field := range map[string]*string{
				"original-name": &edit.OriginalName,
				"description":   &edit.Description,
				"mimetype":      &edit.Mimetype,
				"external":      &edit.External,
				"requirements":  &edit.VersionRequirements,
				"confidence":    &edit.Confidence,
			} {
				if flags.Changed(flag) {
					value, _ := flags.GetString(flag)
					*field = value
				}
			}
			if flags.Changed("depends") {
				if edit.Dependencies, err = parseRefs(dmfFlags.object.Dependencies); err != nil {
					return err
				}
				if edit.Dependencies == nil {
					edit.Dependencies = []model.CompositeRef{}
				}
			}

			ref, err := repo.EditDocumentMetadata(ctx, args[0], edit)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		})
	},
}

var fileMeta = &cobra.Command{
	Use:   "meta <path>",
	Short: "Show the metadata of a document or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			ref, err := repo.GetDMFID(ctx, args[0])
			if err != nil {
				return err
			}
			var meta model.MetadataRecord
			if dmfFlags.object.Version == "" {
				meta, err = repo.GetLatestMeta(ctx, args[0])
			} else {
				var v model.Version
				if v, err = model.ParseVersion(dmfFlags.object.Version); err != nil {
					return err
				}
				meta, err = repo.GetMetaByRef(ctx, ref.ID, v)
				ref = meta.Ref(ref.ID)
			}
			if err != nil {
				return err
			}
			printMeta(cmd, ref, meta)
			return nil
		})
	},
}

func printMeta(cmd *cobra.Command, ref model.CompositeRef, meta model.MetadataRecord) {
	out := cmd.OutOrStdout()
	field := func(name, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(out, "%s %s\n", color.CyanString("%-22s", name+":"), value)
		}
	}
	field("ref", ref.String())
	field("display name", meta.DisplayName)
	field("description", meta.Description)
	field("creator", meta.Creator)
	if meta.Folder {
		return
	}
	field("original name", meta.OriginalName)
	field("mimetype", meta.Mimetype)
	field("external", meta.External)
	field("version requirements", meta.VersionRequirements)
	field("confidence", meta.Confidence)
	field("checksum", meta.Checksum)
	field("comment", meta.CheckInComment)
	for _, dep := range meta.Dependencies {
		field("depends on", dep.String())
	}
}

var fileVersions = &cobra.Command{
	Use:   "versions <path>",
	Short: "List the versions of a document, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			versions, err := repo.GetVersionList(ctx, args[0])
			if err != nil {
				return err
			}
			for _, version := range versions {
				v, err := model.ParseVersion(version)
				if err != nil {
					return err
				}
				created, err := repo.GetCreationDateByVersion(ctx, args[0], v)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", version, created.Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var fileDownload = &cobra.Command{
	Use:   "download <path> [local file]",
	Short: "Download a version of a document",
	Long: `Download a version of a document to a local file, or to the standard output.

Any past version may be downloaded: the working tree is not modified.`,
	Example: `% dmflite file download /u1/Simulation/model.txt ./model-1.0.txt --version 1.0`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			v, err := selectedVersion(ctx, repo, args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				_, err = repo.DownloadFile(ctx, args[0], v, cmd.OutOrStdout())
				return err
			}
			target, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if err = repo.DownloadFileTo(ctx, args[0], v, target); err != nil {
				return err
			}
			if info, err := os.Stat(target); err == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", color.GreenString("downloaded"), target, units.HumanSize(float64(info.Size())))
			}
			return nil
		})
	},
}

var fileDeps = &cobra.Command{
	Use:   "deps <path>",
	Short: "Show the dependencies of a version of a document, transitively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(func(ctx context.Context, repo *core.Repo) error {
			ref, err := repo.GetDMFID(ctx, args[0])
			if err != nil {
				return err
			}
			if ref.Version, err = selectedVersion(ctx, repo, args[0]); err != nil {
				return err
			}
			edges, err := repo.Dependencies(ctx, ref)
			if err != nil {
				return err
			}
			for _, edge := range edges {
				target := edge.To.String()
				if edge.Dangling {
					target = color.RedString("%s (missing)", target)
				} else if pth, err := repo.GetLatestPath(ctx, edge.To.ID); err == nil {
					target += " " + pth
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", edge.From, target)
			}
			return nil
		})
	},
}

func init() {
	addDescriptionFlag(fileUpload)
	addDocumentFlags(fileUpload)
	addCommentFlag(fileUpload)
	addMajorFlag(fileUpload)
	fileCmd.AddCommand(fileUpload)

	addNameFlag(fileEdit)
	addDescriptionFlag(fileEdit)
	addDocumentFlags(fileEdit)
	fileCmd.AddCommand(fileEdit)

	addVersionFlag(fileMeta)
	fileCmd.AddCommand(fileMeta)

	fileCmd.AddCommand(fileVersions)

	addVersionFlag(fileDownload)
	fileCmd.AddCommand(fileDownload)

	addVersionFlag(fileDeps)
	fileCmd.AddCommand(fileDeps)

	rootCmd.AddCommand(fileCmd)
}
