package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/resolve"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Sync the metadata repository and report upgradable packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appRepo.Sync(globalCtx); err != nil {
			return err
		}

		upgrades, err := resolve.IterUpgradable(appLedger, appRepo, resolve.Policy{IncludePrerelease: includePrerelease()})
		if err != nil {
			return err
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindUpgradeList, upgrades)
		}
		if len(upgrades) == 0 {
			fmt.Println("everything up to date")
			return nil
		}
		for _, u := range upgrades {
			fmt.Printf("%s/%s %s -> %s\n", u.Installed.Category, u.Installed.Name, u.Installed.Version, u.NewVersion.Semver())
		}
		return nil
	},
}
