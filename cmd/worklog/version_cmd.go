package main

import (
	"fmt"

	"github.com/fentz26/worklog/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of Worklog",
	Long:  `Display the current version of the Worklog CLI and, when reachable, the daemon.`,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println(version.String())
	if health, err := CheckHealth(); err == nil {
		fmt.Printf("  Daemon: %s (db %s)\n", health.Version, health.DB)
	}
}
