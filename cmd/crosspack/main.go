package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/buildinfo"
	"github.com/crosspack/crosspack/internal/crosserr"
	"github.com/crosspack/crosspack/internal/log"
)

var (
	quietFlag        bool
	verboseFlag      bool
	debugFlag        bool
	registryRootFlag string
)

// globalCtx is canceled on SIGINT/SIGTERM; install passes it to the
// artifact fetch. Registry syncs do not take a context.
var globalCtx context.Context

var rootCmd = &cobra.Command{
	Use:           "crosspack",
	Short:         "A cross-platform, user-level package manager for prebuilt tools",
	Version:       buildinfo.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `crosspack installs prebuilt tool artifacts into a per-user prefix,
resolving dependencies against a signed registry, verifying every download,
and exposing binaries, shell completions, and GUI launchers without
touching anything outside that prefix.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "show errors only")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show verbose output")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "show debug output")
	rootCmd.PersistentFlags().StringVar(&registryRootFlag, "registry-root", "", "read a legacy single-directory registry index instead of configured sources")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		initLogger()
	}

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(selfUpdateCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(completionsCmd)
	rootCmd.AddCommand(initShellCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	var cancel context.CancelFunc
	globalCtx, cancel = context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Fprintf(os.Stderr, "\nreceived %s, canceling operation...\n", s)
		cancel()
		<-sigChan
		fmt.Fprintln(os.Stderr, "forced exit")
		os.Exit(1)
	}()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(crosserr.ExitCode(err))
}

func initLogger() {
	level := determineLogLevel()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log.SetDefault(log.New(handler))
}

func determineLogLevel() slog.Level {
	if debugFlag {
		return slog.LevelDebug
	}
	if verboseFlag {
		return slog.LevelInfo
	}
	if quietFlag {
		return slog.LevelError
	}
	if isTruthy(os.Getenv("CROSSPACK_DEBUG")) {
		return slog.LevelDebug
	}
	if isTruthy(os.Getenv("CROSSPACK_VERBOSE")) {
		return slog.LevelInfo
	}
	if isTruthy(os.Getenv("CROSSPACK_QUIET")) {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func isTruthy(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
