package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display the module version and commit hash actorkitd was built from.`,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	version, commit := "dev", ""

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
			}
		}
	}

	fmt.Printf("actorkitd version %s", version)
	if commit != "" {
		fmt.Printf(" commit=%s", commit)
	}
	fmt.Println()
}
