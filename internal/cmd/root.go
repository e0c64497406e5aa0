// Package cmd provides the CLI surface of ntfs2linux.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ntfs2linux/ntfs2linux/internal/build"
)

// MainCommand provides the program entrypoint: one command, flag-driven.
func MainCommand() *cobra.Command {
	var opts convertOptions
	var verbose bool
	var logFile string

	cmd := &cobra.Command{
		Use:   "ntfs2linux",
		Short: "convert an NTFS volume in place to a Linux filesystem",
		Long: strings.TrimSpace(`
ntfs2linux converts an NTFS volume on a block device into a Linux filesystem
(ext4, btrfs, xfs, f2fs, reiserfs or jfs) without a second disk: the NTFS
volume is shrunk toward its live data, the freed tail becomes the growing
target volume, files migrate in verified batches, and the cycle repeats until
the source is empty.

Progress is journaled after every completed step, so an interrupted
conversion resumes where it stopped.
`),
		Version:      build.Version,
		SilenceUsage: true,
	}

	versionTemplate := "{{.Name}} {{.Version}} [%s]\n"
	cmd.SetVersionTemplate(fmt.Sprintf(versionTemplate, build.CommitDate))

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging output")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log every mutating operation instead of performing it")
	cmd.Flags().BoolVar(&opts.dummyMode, "dummy-mode", false, "Simulate the whole conversion on scripted numbers")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to an optional tunables file")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := logrus.InfoLevel
		if verbose {
			level = logrus.DebugLevel
		}
		setupLogging(level, logFile)

		return nil
	}

	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if opts.dryRun && opts.dummyMode {
			return errors.New("--dry-run and --dummy-mode are mutually exclusive")
		}
		if !opts.dummyMode {
			if err := assertRootPrivileges(); err != nil {
				return err
			}
		}

		return runConvert(cmd.Context(), opts)
	}

	return cmd
}

// setupLogging configures logrus to use the desired timestamp format and log
// level, optionally teeing into a rotated log file.
func setupLogging(level logrus.Level, logFile string) {
	formatter := &logrus.TextFormatter{}
	formatter.TimestampFormat = time.RFC822
	formatter.FullTimestamp = true

	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)

	if logFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MiB
			MaxBackups: 3,
		}
		logrus.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
}

func hasRootPrivileges() bool {
	return os.Geteuid() == 0
}

// assertRootPrivileges checks if the command is running with root
// permissions, since every block operation needs them.
func assertRootPrivileges() error {
	logrus.Debug("Checking user permissions...")
	if !hasRootPrivileges() {
		logrus.Warn("Root privileges required")
		return errors.New("root privileges required, re-run command with sudo")
	}

	return nil
}
