// Copyright © 2019 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ccsi/dmflite/internal"
	"github.com/ccsi/dmflite/pkg/dlogger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// used to patch over calls to os.Exit() during test
var osExit = os.Exit

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dmflite",
	Short: "dmflite keeps versioned simulation files in a local repository",
	Long: `dmflite keeps versioned simulation files in a local repository.

Every document and folder gets a stable identifier. Each upload of a document creates a
new major.minor version, and every change is recorded in an append-only history.
Past versions remain downloadable at any time.

The repository root and the user name are taken from flags, the environment
(DMFLITE_ROOT, DMFLITE_USER) or a dmflite.yaml config file.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := dlogger.GetLogger(logLevel())
		if err != nil {
			return err
		}
		profiler, err = internal.StartProfiler(viper.GetString(cpuProfKey), viper.GetString(memProfKey), logger)
		return err
	},
	// upstream api note:  *PostRun functions aren't called in case of an error in Run
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if profiler == nil {
			return nil
		}
		return profiler.Stop()
	},
}

var profiler *internal.Profiler

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if profiler != nil {
			_ = profiler.Stop()
		}
		_, _ = fmt.Fprintln(os.Stderr, color.RedString(err.Error()))
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addRootFlag(rootCmd)
	addUserFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addTimeoutFlag(rootCmd)
	addCacheSizeFlag(rootCmd)
	addProfilingFlags(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault(rootKey, ".")
	viper.SetDefault(userKey, os.Getenv("USER"))
	viper.SetDefault(logLevelKey, "none")
	viper.SetDefault(cacheSizeKey, 1024)

	if os.Getenv("DMFLITE_CONFIG") != "" {
		// Use config file from the env.
		viper.SetConfigFile(os.Getenv("DMFLITE_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.dmflite")
		viper.AddConfigPath("/etc/dmflite")
		viper.SetConfigName("dmflite")
	}

	viper.SetEnvPrefix("dmflite")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}
