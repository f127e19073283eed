package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/checksum"
	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/manifest"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Maintainer-facing utilities for authoring packages",
}

var adminChecksumCmd = &cobra.Command{
	Use:   "checksum <file>",
	Short: "Compute sha256/sha512 checksums for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sums, err := checksum.ComputeFile(args[0], nil)
		if err != nil {
			return err
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindChecksum, sums)
		}
		for kind, sum := range sums {
			fmt.Printf("%s = %s\n", kind, sum)
		}
		return nil
	},
}

var adminFormatManifestCmd = &cobra.Command{
	Use:   "format-manifest <category> <name> <version> <file>",
	Short: "Parse a manifest and re-emit it in canonical TOML form",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, name, version, path := args[0], args[1], args[2], args[3]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m, err := manifest.Parse(category, name, version, data)
		if err != nil {
			return err
		}
		canon, err := m.ToTOML()
		if err != nil {
			return err
		}
		fmt.Print(string(canon))
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminChecksumCmd)
	adminCmd.AddCommand(adminFormatManifestCmd)
}
