package main

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/magicbot/signal-rpm-packager/internal/config"
	"github.com/magicbot/signal-rpm-packager/internal/pipeline"
	"github.com/magicbot/signal-rpm-packager/internal/pkgver"
	"github.com/magicbot/signal-rpm-packager/internal/sudoloop"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
	"github.com/magicbot/signal-rpm-packager/internal/utils/shell"
)

// Build command flags
var (
	pkgVersion string
	pkgRelease string
	pkgArch    string
)

// createBuildCommand creates the build subcommand and its variants.
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "builds one of the supported RPM packages",
	}

	buildCmd.PersistentFlags().StringVar(&pkgVersion, "version", "",
		"version to package (default: environment, then latest stable release)")
	buildCmd.PersistentFlags().StringVar(&pkgRelease, "release", "",
		"rpm release number (default: RPM_RELEASE, then 1)")
	buildCmd.PersistentFlags().StringVar(&pkgArch, "arch", pkgver.RPMArch(runtime.GOARCH),
		"target rpm architecture: x86_64 or aarch64")

	buildCmd.AddCommand(
		&cobra.Command{
			Use:   "signal-cli",
			Short: "packages the upstream signal-cli release",
			Args:  cobra.NoArgs,
			RunE:  executeBuildSignalCLI,
		},
		&cobra.Command{
			Use:   "daemon",
			Short: "packages the magicbot daemon",
			Args:  cobra.NoArgs,
			RunE:  executeBuildDaemon,
		},
	)
	return buildCmd
}

func executeBuildSignalCLI(cmd *cobra.Command, args []string) error {
	if err := shell.RequireCommands("rpmbuild", "java"); err != nil {
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	rpmPath, err := pipeline.BuildSignalCLI(pipeline.Options{
		Config:      cfg,
		VersionFlag: pkgVersion,
		ReleaseFlag: pkgRelease,
		Arch:        pkgArch,
	})
	if err != nil {
		return err
	}

	logger.Logger().Infof("Package ready: %s", rpmPath)
	return nil
}

func executeBuildDaemon(cmd *cobra.Command, args []string) error {
	if err := shell.RequireCommands("rpmbuild"); err != nil {
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// The daemon spec's lifecycle hooks touch system users and systemd,
	// so the run keeps sudo credentials fresh while it lasts.
	if os.Geteuid() != 0 {
		keepalive := &sudoloop.Keepalive{}
		if err := keepalive.Start(); err != nil {
			return err
		}
		defer keepalive.Stop()
	}

	rpmPath, err := pipeline.BuildDaemon(pipeline.Options{
		Config:      cfg,
		VersionFlag: pkgVersion,
		ReleaseFlag: pkgRelease,
		Arch:        pkgArch,
	})
	if err != nil {
		return err
	}

	logger.Logger().Infof("Package ready: %s", rpmPath)
	return nil
}
