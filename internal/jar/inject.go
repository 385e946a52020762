// Package jar replaces the platform-specific native library bundled
// inside the libsignal-client jar with a build matching the target
// architecture. A jar is a plain zip container, so the rewrite is a
// zip-level operation followed by a mandatory verification pass.
package jar

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"github.com/magicbot/signal-rpm-packager/internal/bundle"
	"github.com/magicbot/signal-rpm-packager/internal/config"
	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/fetch"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// NativeLibName is the canonical root-level entry name after injection.
const NativeLibName = "libsignal_jni.so"

// legacyEntryNames are every entry name a libsignal build has shipped
// under across platforms. All of them are dropped on rewrite; absence
// is tolerated.
var legacyEntryNames = []string{
	"libsignal_jni.so",
	"libsignal_jni_amd64.so",
	"libsignal_jni_aarch64.so",
	"libsignal_jni.dylib",
	"signal_jni.dll",
}

// companionPattern is the fixed filename grammar the library version is
// parsed from. Anchored so the un-substituted template never matches.
var companionPattern = regexp.MustCompile(`^libsignal-client-(\d+(?:\.\d+){1,3})\.jar$`)

// archTargets maps the two supported rpm architectures to the target
// triple used in the secondary-source filename.
var archTargets = map[string]string{
	"x86_64":  "x86_64-unknown-linux-gnu",
	"aarch64": "aarch64-unknown-linux-gnu",
}

// ParseCompanionVersion extracts the libsignal version embedded in the
// companion jar's filename.
func ParseCompanionVersion(filename string) (string, error) {
	m := companionPattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return "", fmt.Errorf("%w: %q does not match libsignal-client-<version>.jar", errdefs.ErrVersionParseFailed, filepath.Base(filename))
	}
	return m[1], nil
}

// Target resolves the secondary-source target triple for an rpm
// architecture. Checked before any network call.
func Target(arch string) (string, error) {
	target, ok := archTargets[arch]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: x86_64, aarch64)", errdefs.ErrUnsupportedArchitecture, arch)
	}
	return target, nil
}

// Injector downloads the architecture-matched native library and
// splices it into the companion jar.
type Injector struct {
	// DownloadTemplate expands {version} and {target} into the native
	// archive URL.
	DownloadTemplate string
	// ScratchDir receives temporary downloads; empty means os.TempDir.
	ScratchDir string
	// Fetch downloads a URL to a local path. Defaults to fetch.File;
	// replaceable in tests.
	Fetch func(url, destPath string) error
}

func (in *Injector) fetchFunc() func(string, string) error {
	if in.Fetch != nil {
		return in.Fetch
	}
	return fetch.File
}

// Inject replaces the native library inside jarPath with the build
// matching arch, deriving the library version from the jar's own
// filename. The rewritten archive is verified to contain exactly one
// entry with the expected name.
func (in *Injector) Inject(jarPath, arch string) error {
	log := logger.Logger()

	version, err := ParseCompanionVersion(jarPath)
	if err != nil {
		return err
	}

	target, err := Target(arch)
	if err != nil {
		return err
	}

	scratchRoot := in.ScratchDir
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	scratch := filepath.Join(scratchRoot, "libsignal-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	url := config.ExpandTemplate(in.DownloadTemplate, version, target)
	archivePath := filepath.Join(scratch, filepath.Base(url))
	if err := in.fetchFunc()(url, archivePath); err != nil {
		return err
	}

	libPath, err := extractNativeLib(archivePath, scratch)
	if err != nil {
		return err
	}

	log.Infof("Injecting %s (libsignal %s, %s) into %s", NativeLibName, version, arch, filepath.Base(jarPath))
	if err := rewrite(jarPath, libPath); err != nil {
		return err
	}

	if err := VerifyEntry(jarPath); err != nil {
		return err
	}
	log.Infof("Verified %s contains %s", filepath.Base(jarPath), NativeLibName)
	return nil
}

// extractNativeLib unpacks the downloaded archive and returns the path
// of the contained shared library.
func extractNativeLib(archivePath, destDir string) (string, error) {
	extractDir := filepath.Join(destDir, "native")
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return "", err
	}
	if err := bundle.Extract(archivePath, extractDir); err != nil {
		return "", err
	}

	var found string
	err := filepath.Walk(extractDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if info.Name() == NativeLibName {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning native archive: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s not present in %s", errdefs.ErrArtifactNotFound, NativeLibName, filepath.Base(archivePath))
	}
	return found, nil
}

// rewrite copies every entry of the jar except the legacy native
// library names into a fresh archive, appends libPath as the root-level
// entry, and atomically replaces the original file.
func rewrite(jarPath, libPath string) error {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return fmt.Errorf("opening jar %s: %w", jarPath, err)
	}
	defer zr.Close()

	tmpPath := jarPath + ".rewrite"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}
	defer os.Remove(tmpPath)

	zw := zip.NewWriter(tmp)

	drop := make(map[string]bool, len(legacyEntryNames))
	for _, name := range legacyEntryNames {
		drop[name] = true
	}

	for _, f := range zr.File {
		if drop[f.Name] {
			continue
		}
		if err := zw.Copy(f); err != nil {
			zw.Close()
			tmp.Close()
			return fmt.Errorf("copying jar entry %s: %w", f.Name, err)
		}
	}

	lib, err := os.Open(libPath)
	if err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("opening %s: %w", libPath, err)
	}
	w, err := zw.Create(NativeLibName)
	if err == nil {
		_, err = io.Copy(w, lib)
	}
	lib.Close()
	if err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("adding %s: %w", NativeLibName, err)
	}

	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finalizing jar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	zr.Close()

	if err := os.Rename(tmpPath, jarPath); err != nil {
		return fmt.Errorf("replacing %s: %w", jarPath, err)
	}
	return nil
}

// VerifyEntry confirms the archive contains exactly one entry with the
// canonical native library name. Runs after every injection.
func VerifyEntry(jarPath string) error {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return fmt.Errorf("%w: reopening %s: %v", errdefs.ErrInjectionVerificationFailed, jarPath, err)
	}
	defer zr.Close()

	count := 0
	for _, f := range zr.File {
		if f.Name == NativeLibName {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("%w: expected exactly one %s entry in %s, found %d",
			errdefs.ErrInjectionVerificationFailed, NativeLibName, filepath.Base(jarPath), count)
	}
	return nil
}
