package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/installer"
)

var uninstallHost string

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <atom>",
	Short: "Remove an installed package and its ledger record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := resolveAtom(args[0])
		if err != nil {
			return err
		}

		host := uninstallHost
		if host == "" {
			host = currentHost()
		}

		inst := installer.New(appConfig, appLedger, appRepo, appRepo.Root())
		if err := inst.Uninstall(m, host); err != nil {
			return err
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindUninstallResult, map[string]string{
				"name":    m.NameForInstallation(),
				"version": m.Semver().String(),
			})
		}
		fmt.Printf("uninstalled %s %s\n", m.NameForInstallation(), m.Semver())
		return nil
	},
}

func init() {
	uninstallCmd.Flags().StringVar(&uninstallHost, "host", "", "target host (os/arch), defaults to the running host")
}
