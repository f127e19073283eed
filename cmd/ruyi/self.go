package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

var selfCmd = &cobra.Command{
	Use:   "self",
	Short: "Manage this ruyi installation",
}

// selfUninstallCmd only checks the installation.externally_managed guard
// spec.md §6 describes; removing ruyi's own binary/self-installed files
// is an OOBE-adjacent flow out of scope here.
var selfUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall ruyi itself (guard check only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appUserConfig.Installation.ExternallyManaged {
			return ruyierr.New("cmd/self", ruyierr.InvalidConfigValue, "installation.externally_managed",
				"this ruyi installation is externally managed and cannot self-uninstall", nil)
		}
		fmt.Println("self-uninstall is not implemented beyond this guard check")
		return nil
	},
}

func init() {
	selfCmd.AddCommand(selfUninstallCmd)
}
