// Package commands implements the actorkitd CLI: a daemon that hosts an
// ActorSystem, optionally accepting remote actor-hosting connections, plus
// the forked-child bootstrap every actorkitd binary must also be able to
// run as.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// logDir is the directory rotated log files are written under. An
	// empty value disables file logging (console only).
	logDir string

	// maxLogFiles bounds how many rotated log files are kept on disk.
	maxLogFiles int

	// maxLogFileSize bounds a single log file's size, in MB, before
	// rotation.
	maxLogFileSize int
)

// rootCmd is the base command for the actorkitd CLI.
var rootCmd = &cobra.Command{
	Use:   "actorkitd",
	Short: "actorkitd hosts an actorkit ActorSystem",
	Long: `actorkitd runs an actorkit ActorSystem as a long-lived process,
optionally listening for remote actor-hosting connections from peer
actorkitd processes.

This same binary also serves as the forked-child worker: when launched
with ACTORKIT_CHILD_HOST set in its environment, it runs
actor.RunChildHost instead of the CLI below (see main.go).`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "",
		"Directory for rotating log files (empty disables file logging)",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLogFiles, "max-log-files", 10,
		"Maximum number of rotated log files to keep",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLogFileSize, "max-log-file-size", 20,
		"Maximum log file size in MB before rotation",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
