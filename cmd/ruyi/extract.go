package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/installer"
)

var extractHost string

var extractCmd = &cobra.Command{
	Use:   "extract <atom> <dest>",
	Short: "Fetch and unpack a package into an arbitrary directory, bypassing the ledger",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := resolveAtom(args[0])
		if err != nil {
			return err
		}
		dest := args[1]

		host := extractHost
		if host == "" {
			host = currentHost()
		}

		inst := installer.New(appConfig, appLedger, appRepo, appRepo.Root())
		opts := installer.Options{Host: host, RepoID: appRepo.Root()}
		if err := inst.Extract(globalCtx, m, dest, opts); err != nil {
			return err
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindInstallResult, map[string]string{"dest": dest})
		}
		fmt.Printf("extracted %s %s into %s\n", m.NameForInstallation(), m.Semver(), dest)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractHost, "host", "", "target host (os/arch), defaults to the running host")
}
