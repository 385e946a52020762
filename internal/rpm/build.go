package rpm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	rpmutils "github.com/sassoftware/go-rpmutils"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/pkgver"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
	"github.com/magicbot/signal-rpm-packager/internal/utils/shell"
)

// Builder invokes the external package-build tool against a staged
// source tree and rendered spec.
type Builder struct {
	// Topdir is passed to rpmbuild as _topdir.
	Topdir string
	// Run executes a command line and returns its output. Defaults to
	// the streamed shell runner; replaceable in tests.
	Run func(cmdStr string, sudo bool, envVal []string) (string, error)
}

func (b *Builder) runner() func(string, bool, []string) (string, error) {
	if b.Run != nil {
		return b.Run
	}
	return shell.ExecCmdWithStream
}

// Build runs rpmbuild -bb for the given spec. A non-zero exit is
// reported verbatim as a package build failure.
func (b *Builder) Build(specPath string) error {
	log := logger.Logger()

	cmd := fmt.Sprintf("rpmbuild -bb --define %s %s",
		shell.Quote("_topdir "+b.Topdir), shell.Quote(specPath))

	log.Infof("Invoking rpmbuild for %s", filepath.Base(specPath))
	if out, err := b.runner()(cmd, false, nil); err != nil {
		return fmt.Errorf("%w: %v\n%s", errdefs.ErrPackageBuildFailed, err, out)
	}
	return nil
}

// VerifyBuilt locates the built package under RPMS and checks its
// header against the request. Returns the package path.
func (b *Builder) VerifyBuilt(req pkgver.Request) (string, error) {
	log := logger.Logger()

	pattern := filepath.Join(b.Topdir, "RPMS", "*", req.NVR()+"*.rpm")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("%w: no package matching %s under RPMS", errdefs.ErrPackageBuildFailed, req.NVR())
	}
	rpmPath := matches[0]

	f, err := os.Open(rpmPath)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %v", errdefs.ErrPackageBuildFailed, rpmPath, err)
	}
	defer f.Close()

	pkg, err := rpmutils.ReadRpm(f)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", errdefs.ErrPackageBuildFailed, rpmPath, err)
	}
	nevra, err := pkg.Header.GetNEVRA()
	if err != nil {
		return "", fmt.Errorf("%w: reading header of %s: %v", errdefs.ErrPackageBuildFailed, rpmPath, err)
	}

	if nevra.Name != req.Name || nevra.Version != req.Version || nevra.Release != strconv.Itoa(req.Release) {
		// Release may carry a %{?dist} suffix; compare the numeric prefix.
		if nevra.Name != req.Name || nevra.Version != req.Version || !hasReleasePrefix(nevra.Release, req.Release) {
			return "", fmt.Errorf("%w: built package %s-%s-%s does not match request %s",
				errdefs.ErrPackageBuildFailed, nevra.Name, nevra.Version, nevra.Release, req.NVR())
		}
	}

	log.Infof("Built and verified %s", rpmPath)
	return rpmPath, nil
}

func hasReleasePrefix(release string, want int) bool {
	prefix := strconv.Itoa(want)
	if release == prefix {
		return true
	}
	return len(release) > len(prefix) && release[:len(prefix)] == prefix && release[len(prefix)] == '.'
}
