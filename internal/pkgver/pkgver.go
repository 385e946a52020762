// Package pkgver resolves and validates the version/release pair a
// packaging run operates on.
package pkgver

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
)

var (
	// Accepted: 2 to 4 dot-separated numeric components, e.g. 0.13.18.
	versionPattern = regexp.MustCompile(`^\d+(\.\d+){1,3}$`)
	// The daemon variant also ships tagged pre-releases, e.g. 1.4.0-rc1.
	daemonVersionPattern = regexp.MustCompile(`^\d+(\.\d+){1,3}(-[0-9A-Za-z.]+)?$`)
)

// Request identifies one package build.
type Request struct {
	Name    string
	Version string
	Release int
	Arch    string
}

// NVR returns the name-version-release triple as rpm spells it.
func (r Request) NVR() string {
	return fmt.Sprintf("%s-%s-%d", r.Name, r.Version, r.Release)
}

// Validate checks a version string against the accepted grammar.
// allowPrerelease widens the grammar to tagged pre-releases for the
// daemon variant.
func Validate(version string, allowPrerelease bool) error {
	pat := versionPattern
	if allowPrerelease {
		pat = daemonVersionPattern
	}
	if !pat.MatchString(version) {
		return fmt.Errorf("%w: %q", errdefs.ErrInvalidVersion, version)
	}
	return nil
}

// ResolveVersion picks the version from the flag value, then the named
// environment variable, then the discover callback. The winner is
// validated before it is returned.
func ResolveVersion(flagVal, envVar string, allowPrerelease bool, discover func() (string, error)) (string, error) {
	version := strings.TrimSpace(flagVal)
	if version == "" {
		version = strings.TrimSpace(os.Getenv(envVar))
	}
	if version == "" {
		var err error
		version, err = discover()
		if err != nil {
			return "", err
		}
	}
	if err := Validate(version, allowPrerelease); err != nil {
		return "", err
	}
	return version, nil
}

// ResolveRelease picks the release number from the flag value, then the
// RPM_RELEASE environment variable, defaulting to 1.
func ResolveRelease(flagVal string) (int, error) {
	raw := strings.TrimSpace(flagVal)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("RPM_RELEASE"))
	}
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: release must be a positive integer, got %q", errdefs.ErrInvalidVersion, raw)
	}
	return n, nil
}

// RPMVersion converts an upstream version into the form rpm accepts in
// its Version field. The pre-release separator "-" is rpm's
// name-version-release delimiter and is rejected inside Version, so it
// becomes "~", which rpm sorts before the final release.
func RPMVersion(version string) string {
	return strings.Replace(version, "-", "~", 1)
}

// RPMArch maps a machine identifier to the two rpm architectures the
// native library is published for. Other values are passed through
// unchanged; the injector rejects them before any network call.
func RPMArch(machine string) string {
	switch machine {
	case "amd64", "x86_64":
		return "x86_64"
	case "arm64", "aarch64":
		return "aarch64"
	default:
		return machine
	}
}
