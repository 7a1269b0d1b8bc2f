package cmd

import (
	"time"

	"github.com/ccsi/dmflite/pkg/dlogger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	rootKey      = "root"
	userKey      = "user"
	logLevelKey  = "loglevel"
	timeoutKey   = "timeout"
	cacheSizeKey = "cache-size"
	cpuProfKey   = "cpuprof"
	memProfKey   = "memprof"
)

type flagsT struct {
	object struct {
		Description         string
		Name                string
		OriginalName        string
		Mimetype            string
		Confidence          string
		External            string
		VersionRequirements string
		Comment             string
		Dependencies        []string
		Major               bool
		Version             string
	}
	log struct {
		Export string
	}
}

var dmfFlags = flagsT{}

func bindPersistent(cmd *cobra.Command, key string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(key)); err != nil {
		panic(err)
	}
}

func addRootFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(rootKey, "", "The repository root directory (default: current directory)")
	bindPersistent(cmd, rootKey)
	return rootKey
}

func addUserFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(userKey, "", "The user name, which is also the namespace folder (default: $USER)")
	bindPersistent(cmd, userKey)
	return userKey
}

func addLogLevelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(logLevelKey, "", "The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	bindPersistent(cmd, logLevelKey)
	return logLevelKey
}

func addTimeoutFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().Duration(timeoutKey, time.Duration(0), "Timeout for every repository operation (0 means no timeout)")
	bindPersistent(cmd, timeoutKey)
	return timeoutKey
}

func addCacheSizeFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().Int(cacheSizeKey, 0, "The number of decoded history entries to keep in memory")
	bindPersistent(cmd, cacheSizeKey)
	return cacheSizeKey
}

func addProfilingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(cpuProfKey, "", "Write a CPU profile of the command to this file")
	cmd.PersistentFlags().String(memProfKey, "", "Write a heap profile at the end of the command to this file")
	bindPersistent(cmd, cpuProfKey)
	bindPersistent(cmd, memProfKey)
	_ = cmd.PersistentFlags().MarkHidden(cpuProfKey)
	_ = cmd.PersistentFlags().MarkHidden(memProfKey)
}

func addDescriptionFlag(cmd *cobra.Command) string {
	description := "description"
	cmd.Flags().StringVar(&dmfFlags.object.Description, description, "", "A description of the object")
	return description
}

func addNameFlag(cmd *cobra.Command) string {
	name := "name"
	cmd.Flags().StringVar(&dmfFlags.object.Name, name, "", "A new display name, which moves the object within its folder")
	return name
}

func addDocumentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dmfFlags.object.OriginalName, "original-name", "", "The original name of the file (default: the local file name)")
	cmd.Flags().StringVar(&dmfFlags.object.Mimetype, "mimetype", "", "The mimetype of the content (default: guessed from the file extension)")
	cmd.Flags().StringVar(&dmfFlags.object.Confidence, "confidence", "", "The confidence level of the content, e.g. experimental")
	cmd.Flags().StringVar(&dmfFlags.object.External, "external", "", "Whether the content comes from an external source")
	cmd.Flags().StringVar(&dmfFlags.object.VersionRequirements, "requirements", "", "Version requirements of the tools consuming this content")
	cmd.Flags().StringSliceVar(&dmfFlags.object.Dependencies, "depends", nil, "References (id;major.minor) of the versions this document depends on")
}

func addCommentFlag(cmd *cobra.Command) string {
	comment := "comment"
	cmd.Flags().StringVar(&dmfFlags.object.Comment, comment, "", "A check-in comment")
	return comment
}

func addMajorFlag(cmd *cobra.Command) string {
	major := "major"
	cmd.Flags().BoolVar(&dmfFlags.object.Major, major, false, "Bump the major version instead of the minor version")
	return major
}

func addVersionFlag(cmd *cobra.Command) string {
	version := "version"
	cmd.Flags().StringVar(&dmfFlags.object.Version, version, "", "The version (major.minor) to use (default: the latest version)")
	return version
}

func addExportFlag(cmd *cobra.Command) string {
	export := "export"
	cmd.Flags().StringVar(&dmfFlags.log.Export, export, "", "Export the history as a spreadsheet (.xlsx) to this file")
	return export
}

func logLevel() string {
	if lvl := viper.GetString(logLevelKey); lvl != "" {
		return lvl
	}
	return dlogger.LogLevelNone
}
