// Package pipeline sequences the packaging stages for each build
// variant: resolve version, fetch artifacts, normalize the bundle,
// inject the native library (signal-cli only), and emit the package.
// Every stage fails fast; nothing is retried.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/magicbot/signal-rpm-packager/internal/bundle"
	"github.com/magicbot/signal-rpm-packager/internal/config"
	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/fetch"
	"github.com/magicbot/signal-rpm-packager/internal/jar"
	"github.com/magicbot/signal-rpm-packager/internal/pkgver"
	"github.com/magicbot/signal-rpm-packager/internal/release"
	"github.com/magicbot/signal-rpm-packager/internal/rpm"
	"github.com/magicbot/signal-rpm-packager/internal/staging"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// PackageBuilder is the emitter's downstream collaborator.
type PackageBuilder interface {
	Build(specPath string) error
	VerifyBuilt(req pkgver.Request) (string, error)
}

// Options carries the per-run inputs shared by both variants.
type Options struct {
	Config *config.Config
	// VersionFlag and ReleaseFlag are the raw CLI values; empty means
	// fall back to environment, then discovery (version) or 1 (release).
	VersionFlag string
	ReleaseFlag string
	// Arch is the target rpm architecture, e.g. x86_64.
	Arch string
	// Builder defaults to an rpm.Builder over the configured topdir.
	Builder PackageBuilder
	// Fetch downloads a URL to a local path. Defaults to fetch.File.
	Fetch func(url, destPath string) error
}

func (o *Options) builder() PackageBuilder {
	if o.Builder != nil {
		return o.Builder
	}
	return &rpm.Builder{Topdir: o.Config.Topdir}
}

func (o *Options) fetchFunc() func(string, string) error {
	if o.Fetch != nil {
		return o.Fetch
	}
	return fetch.File
}

// BuildSignalCLI runs the full signal-cli packaging pipeline and
// returns the built package path.
func BuildSignalCLI(opts Options) (string, error) {
	log := logger.Logger()
	cfg := opts.Config

	discover := func() (string, error) {
		c := &release.Client{
			APIBase: cfg.SignalCLI.APIBase,
			Repo:    cfg.SignalCLI.Repo,
			PageURL: cfg.SignalCLI.PageURL,
		}
		return c.LatestVersion()
	}

	version, err := pkgver.ResolveVersion(opts.VersionFlag, "SIGNAL_CLI_VERSION", false, discover)
	if err != nil {
		return "", err
	}
	releaseNum, err := pkgver.ResolveRelease(opts.ReleaseFlag)
	if err != nil {
		return "", err
	}
	req := pkgver.Request{Name: "signal-cli", Version: version, Release: releaseNum, Arch: opts.Arch}
	log.Infof("Packaging %s for %s", req.NVR(), req.Arch)

	area, err := staging.Prepare(cfg.Topdir, req.Name, req.Version)
	if err != nil {
		return "", err
	}

	scratch := filepath.Join(os.TempDir(), "signal-cli-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	url := config.ExpandTemplate(cfg.SignalCLI.DownloadTemplate, version, "")
	archivePath := filepath.Join(scratch, filepath.Base(url))
	if err := opts.fetchFunc()(url, archivePath); err != nil {
		return "", err
	}

	normalizer := &bundle.Normalizer{LauncherName: "signal-cli", ScratchDir: scratch}
	layout, err := normalizer.Normalize(archivePath, area.SourceTreeDir())
	if err != nil {
		return "", err
	}

	companion, err := findCompanionJar(layout.Jars)
	if err != nil {
		return "", err
	}
	injector := &jar.Injector{
		DownloadTemplate: cfg.Native.DownloadTemplate,
		ScratchDir:       scratch,
		Fetch:            opts.Fetch,
	}
	if err := injector.Inject(companion, req.Arch); err != nil {
		return "", err
	}

	return emit(area, req, rpm.SignalCLISpec(req, basenames(layout.Jars), basenames(layout.NativeLibs)), opts.builder())
}

// BuildDaemon runs the magicbot daemon packaging pipeline and returns
// the built package path.
func BuildDaemon(opts Options) (string, error) {
	log := logger.Logger()
	cfg := opts.Config

	discover := func() (string, error) {
		c := &release.Client{
			APIBase: cfg.Daemon.APIBase,
			Repo:    cfg.Daemon.Repo,
			PageURL: cfg.Daemon.PageURL,
		}
		return c.LatestVersion()
	}

	version, err := pkgver.ResolveVersion(opts.VersionFlag, "MAGICBOT_VERSION", true, discover)
	if err != nil {
		return "", err
	}
	releaseNum, err := pkgver.ResolveRelease(opts.ReleaseFlag)
	if err != nil {
		return "", err
	}
	// Upstream tags may carry a pre-release suffix; the download URL
	// keeps it verbatim while the rpm fields use the "~" form.
	req := pkgver.Request{Name: "magicbot", Version: pkgver.RPMVersion(version), Release: releaseNum, Arch: opts.Arch}
	log.Infof("Packaging %s for %s", req.NVR(), req.Arch)

	area, err := staging.Prepare(cfg.Topdir, req.Name, req.Version)
	if err != nil {
		return "", err
	}

	binaryPath, cleanup, err := daemonBinary(cfg, version, opts.fetchFunc())
	if err != nil {
		return "", err
	}
	defer cleanup()

	if err := area.StageFile(binaryPath, "magicbot", 0755); err != nil {
		return "", err
	}

	unit, err := rpm.RenderUnit(rpm.DaemonUnit())
	if err != nil {
		return "", err
	}
	if err := area.StageContent(unit, "magicbot.service", 0644); err != nil {
		return "", err
	}

	return emit(area, req, rpm.DaemonSpec(req), opts.builder())
}

// emit writes the tarball and spec, then invokes and verifies the
// external build tool. Shared tail of both variants.
func emit(area *staging.Area, req pkgver.Request, data *rpm.SpecData, builder PackageBuilder) (string, error) {
	if _, err := area.WriteTarball(); err != nil {
		return "", err
	}

	content, err := rpm.Render(data)
	if err != nil {
		return "", err
	}
	specPath, err := area.WriteSpec(content)
	if err != nil {
		return "", err
	}

	if err := builder.Build(specPath); err != nil {
		return "", err
	}
	return builder.VerifyBuilt(req)
}

// daemonBinary resolves the magicbot binary to package: a local build
// when configured, otherwise the release download for the version.
func daemonBinary(cfg *config.Config, version string, fetchFn func(string, string) error) (string, func(), error) {
	if cfg.Daemon.BinaryPath != "" {
		if _, err := os.Stat(cfg.Daemon.BinaryPath); err != nil {
			return "", nil, fmt.Errorf("%w: daemon binary %s: %v", errdefs.ErrArtifactNotFound, cfg.Daemon.BinaryPath, err)
		}
		return cfg.Daemon.BinaryPath, func() {}, nil
	}

	scratch := filepath.Join(os.TempDir(), "magicbot-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return "", nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(scratch) }

	url := config.ExpandTemplate(cfg.Daemon.DownloadTemplate, version, "")
	archivePath := filepath.Join(scratch, filepath.Base(url))
	if err := fetchFn(url, archivePath); err != nil {
		cleanup()
		return "", nil, err
	}

	// Release assets may be the bare binary or a tarball around it.
	if !strings.HasSuffix(archivePath, ".tar.gz") && !strings.HasSuffix(archivePath, ".tgz") &&
		!strings.HasSuffix(archivePath, ".tar.xz") && !strings.HasSuffix(archivePath, ".zip") {
		return archivePath, cleanup, nil
	}

	extractDir := filepath.Join(scratch, "extracted")
	if err := bundle.Extract(archivePath, extractDir); err != nil {
		cleanup()
		return "", nil, err
	}

	var found string
	_ = filepath.Walk(extractDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if info.Name() == "magicbot" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if found == "" {
		cleanup()
		return "", nil, fmt.Errorf("%w: magicbot binary not present in %s", errdefs.ErrArtifactNotFound, filepath.Base(archivePath))
	}
	return found, cleanup, nil
}

// findCompanionJar picks the libsignal-client jar out of the staged
// libraries.
func findCompanionJar(jars []string) (string, error) {
	for _, j := range jars {
		if _, err := jar.ParseCompanionVersion(j); err == nil {
			return j, nil
		}
	}
	return "", fmt.Errorf("%w: no libsignal-client jar in bundle", errdefs.ErrArtifactNotFound)
}

func basenames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	return out
}
