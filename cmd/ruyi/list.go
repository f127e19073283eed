package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/cliout"
)

var listInstalledFlag bool

var listCmd = &cobra.Command{
	Use:   "list [name]",
	Short: "List packages available in the metadata repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listInstalledFlag {
			return runListInstalled()
		}
		return runListRepo(args)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listInstalledFlag, "installed", false, "list installed packages instead of the repo catalog")
}

type pkgSummary struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

func runListRepo(args []string) error {
	byCatName, err := appRepo.IterPkgs()
	if err != nil {
		return err
	}

	var out []pkgSummary
	for category, byName := range byCatName {
		for name, byVer := range byName {
			if len(args) > 0 && args[0] != name {
				continue
			}
			for ver := range byVer {
				out = append(out, pkgSummary{Category: category, Name: name, Version: ver})
			}
		}
	}

	if porcelainFlag {
		return appEmit.Emit(cliout.KindPkgList, out)
	}
	if len(out) == 0 {
		fmt.Println("no matching packages")
		return nil
	}
	for _, p := range out {
		fmt.Printf("%s/%s %s\n", p.Category, p.Name, p.Version)
	}
	return nil
}

func runListInstalled() error {
	records, err := appLedger.ListAll()
	if err != nil {
		return err
	}
	if porcelainFlag {
		return appEmit.Emit(cliout.KindPkgList, records)
	}
	if len(records) == 0 {
		fmt.Println("no packages installed")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(os.Stdout, "%s/%s %s%s\n", r.Category, r.Name, r.Version, hostSuffix(r.Host))
	}
	return nil
}

func hostSuffix(host string) string {
	if host == "" {
		return ""
	}
	return " (" + host + ")"
}
