package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/profile"
	"github.com/ruyisdk/ruyi-go/internal/venv"
)

var (
	venvHost        string
	venvEmulator    string
	venvSysroot     string
	venvExtraCmds   []string
	venvProfilesSrc string
)

var venvCmd = &cobra.Command{
	Use:   "venv <profile> <dest> <toolchain-atom> [toolchain-atom...]",
	Short: "Synthesize a cross-toolchain virtual environment",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, dest, tcAtoms := args[0], args[1], args[2:]

		data, err := os.ReadFile(venvProfilesSrc)
		if err != nil {
			return fmt.Errorf("reading profiles file: %w", err)
		}
		reg, err := profile.ParseRISCV(data)
		if err != nil {
			return err
		}

		host := venvHost
		if host == "" {
			host = currentHost()
		}

		req := venv.Request{
			Host:              host,
			ProfileID:         profileID,
			Dest:              dest,
			WithSysroot:       venvSysroot != "",
			ToolchainAtoms:    tcAtoms,
			EmulatorAtom:      venvEmulator,
			SysrootAtom:       venvSysroot,
			ExtraCmdAtoms:     venvExtraCmds,
			IncludePrerelease: includePrerelease(),
		}

		res, err := venv.Resolve(globalCtx, req, reg, appRepo, appConfig)
		if err != nil {
			return err
		}
		if err := venv.Provision(res, req); err != nil {
			return err
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindVenvResult, map[string]any{"dest": dest, "targets": len(res.Targets)})
		}
		fmt.Printf("venv ready at %s (%d target(s))\n", dest, len(res.Targets))
		return nil
	},
}

func init() {
	venvCmd.Flags().StringVar(&venvHost, "host", "", "target host (os/arch), defaults to the running host")
	venvCmd.Flags().StringVar(&venvEmulator, "emulator", "", "emulator package atom")
	venvCmd.Flags().StringVar(&venvSysroot, "sysroot-from", "", "toolchain atom to source the sysroot from")
	venvCmd.Flags().StringSliceVar(&venvExtraCmds, "with", nil, "extra command-providing package atoms")
	venvCmd.Flags().StringVar(&venvProfilesSrc, "profiles", "", "path to the RISC-V profiles TOML file")
	venvCmd.MarkFlagRequired("profiles")
}
