package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/atom"
	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/installer"
	"github.com/ruyisdk/ruyi-go/internal/manifest"
	"github.com/ruyisdk/ruyi-go/internal/resolve"
	"github.com/ruyisdk/ruyi-go/internal/ruyihost"
)

var (
	installHost      string
	installFetchOnly bool
	installReinstall bool
)

var installCmd = &cobra.Command{
	Use:   "install <atom>",
	Short: "Resolve and install a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := resolveAtom(args[0])
		if err != nil {
			return err
		}

		host := installHost
		if host == "" {
			host = currentHost()
		}

		inst := installer.New(appConfig, appLedger, appRepo, appRepo.Root())
		opts := installer.Options{Host: host, FetchOnly: installFetchOnly, Reinstall: installReinstall, RepoID: appRepo.Root()}
		if err := inst.Install(globalCtx, m, opts); err != nil {
			return err
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindInstallResult, map[string]string{
				"name":    m.NameForInstallation(),
				"version": m.Semver().String(),
				"host":    host,
			})
		}
		fmt.Printf("installed %s %s\n", m.NameForInstallation(), m.Semver())
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installHost, "host", "", "target host (os/arch), defaults to the running host")
	installCmd.Flags().BoolVar(&installFetchOnly, "fetch-only", false, "only fetch distfiles, do not unpack or install")
	installCmd.Flags().BoolVar(&installReinstall, "reinstall", false, "reinstall even if already installed")
}

// resolveAtom parses and resolves a user-facing atom spec against the
// wired metadata repository under the current prerelease policy.
func resolveAtom(spec string) (*manifest.Manifest, error) {
	a, err := atom.Parse(spec)
	if err != nil {
		return nil, err
	}
	return resolve.Resolve(appRepo, a, resolve.Policy{IncludePrerelease: includePrerelease()})
}

func currentHost() string {
	return ruyihost.Host{OS: runtime.GOOS, Arch: runtime.GOARCH}.Canonicalize().String()
}
