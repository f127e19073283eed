// Command ruyi is the RISC-V/cross-compilation developer SDK package
// manager's CLI: a thin cobra wrapper over the core packages (metarepo,
// resolve, installer, venv, shim, entity, profile) that exercises the
// full pipeline end to end. Interactive UX, TTY handling, telemetry
// upload and news rendering are out of scope; this wires the pipeline
// together rather than polishing the surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/buildinfo"
	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/config"
	"github.com/ruyisdk/ruyi-go/internal/errmsg"
	"github.com/ruyisdk/ruyi-go/internal/ledger"
	"github.com/ruyisdk/ruyi-go/internal/log"
	"github.com/ruyisdk/ruyi-go/internal/metarepo"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
	"github.com/ruyisdk/ruyi-go/internal/userconfig"
)

var (
	quietFlag      bool
	verboseFlag    bool
	debugFlag      bool
	porcelainFlag  bool
	prereleaseFlag bool
)

// globalCtx is canceled on SIGINT/SIGTERM; long-running commands (sync,
// fetch) should thread it through.
var globalCtx context.Context
var globalCancel context.CancelFunc

// appConfig, appUserConfig, appRepo and appLedger are wired once in init
// and shared by every subcommand.
var (
	appConfig     *config.Config
	appUserConfig *userconfig.Config
	appRepo       *metarepo.Repo
	appLedger     *ledger.Ledger
	appEmit       *cliout.Emitter
)

var rootCmd = &cobra.Command{
	Use:     "ruyi",
	Short:   "A package manager for RISC-V and cross-compilation developer SDKs",
	Version: buildinfo.Version(),
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show verbose output")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "show debug output")
	rootCmd.PersistentFlags().BoolVar(&porcelainFlag, "porcelain", false, "machine-readable JSON-lines output")
	rootCmd.PersistentFlags().BoolVar(&prereleaseFlag, "prereleases", false, "consider prerelease versions")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogger()
		appEmit = cliout.NewEmitter(os.Stdout)
		return wireApp()
	}

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(venvCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(selfCmd)
}

func main() {
	globalCtx, globalCancel = context.WithCancel(context.Background())
	defer globalCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nreceived interrupt, canceling...")
		globalCancel()
	}()

	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		exitWithCode(classify(err))
	}
}

func initLogger() {
	level := slog.LevelWarn
	switch {
	case debugFlag:
		level = slog.LevelDebug
	case verboseFlag:
		level = slog.LevelInfo
	case quietFlag:
		level = slog.LevelError
	}
	if isTruthyEnv("RUYI_DEBUG") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

// isTruthyEnv matches spec.md §6's truthy vocabulary: {1, true, x, y,
// yes}, case-insensitive.
func isTruthyEnv(name string) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "x", "y", "yes":
		return true
	default:
		return false
	}
}

// wireApp builds the shared config/user-config/metarepo/ledger handles
// every subcommand draws from.
func wireApp() error {
	var err error
	appConfig, err = config.DefaultConfig()
	if err != nil {
		return err
	}
	if err := appConfig.EnsureDirectories(); err != nil {
		return err
	}

	appUserConfig, err = userconfig.Load()
	if err != nil {
		return err
	}

	remote := appUserConfig.Repo.Remote
	branch := appUserConfig.Repo.Branch
	root := appConfig.PackagesIndex
	if appUserConfig.Repo.Local != "" {
		root = appUserConfig.Repo.Local
	}
	appRepo = metarepo.New(root, remote, branch, !appUserConfig.Installation.ExternallyManaged)

	appLedger = ledger.New(appConfig.LedgerFile)
	return nil
}

func includePrerelease() bool {
	return prereleaseFlag || appUserConfig.Packages.Prereleases
}

// reportError prints err either as a porcelain error-v1 envelope or as a
// formatted human-readable message, per spec.md §6.
func reportError(err error) {
	if porcelainFlag && appEmit != nil {
		appEmit.Emit(cliout.KindError, map[string]string{"message": err.Error()})
		return
	}
	fmt.Fprintln(os.Stderr, errmsg.Format(err, nil))
}

// classify maps an error to a non-zero exit code: 1 for user-input and
// environment errors, 2 for everything else ruyierr tags, 1 as the
// fallback for untagged errors.
func classify(err error) int {
	var rErr *ruyierr.Error
	if errors.As(err, &rErr) {
		return rErr.Class().ExitCode()
	}
	return ExitGeneral
}
