// Package bundle extracts a downloaded release archive and locates the
// files the packaging stage needs: the launcher script, the jar
// libraries, and any bundled native libraries.
package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// maxSearchDepth bounds the fallback tree walk. Release archives nest
// at most <name>-<version>/bin/<launcher>.
const maxSearchDepth = 4

// Layout is the flat view of an extracted bundle.
type Layout struct {
	// Launcher is the absolute path of the executable entry point.
	Launcher string
	// Jars are all *.jar files found in the bundle.
	Jars []string
	// NativeLibs are bundled libsignal_jni*.so files, if any.
	NativeLibs []string
}

// launcherLocator is one candidate location for the launcher. The fixed
// locator list is evaluated in order; first structural match wins.
type launcherLocator struct {
	desc string
	find func(root, launcherName string) (string, bool)
}

func relPathLocator(rel ...string) launcherLocator {
	return launcherLocator{
		desc: filepath.Join(rel...),
		find: func(root, launcherName string) (string, bool) {
			p := filepath.Join(append([]string{root}, rel...)...)
			p = strings.ReplaceAll(p, "{launcher}", launcherName)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, true
			}
			return "", false
		},
	}
}

// The search order is fixed and first-match-wins. The last entry walks
// the tree so a differently-named top-level directory still resolves.
var launcherLocators = []launcherLocator{
	relPathLocator("bin", "{launcher}"),
	relPathLocator("{launcher}"),
	{
		desc: "*/bin/{launcher}",
		find: func(root, launcherName string) (string, bool) {
			return searchTree(root, filepath.Join("bin", launcherName))
		},
	},
	{
		desc: "**/{launcher}",
		find: func(root, launcherName string) (string, bool) {
			return searchTree(root, launcherName)
		},
	},
}

// searchTree looks for a path ending in suffix, at bounded depth.
func searchTree(root, suffix string) (string, bool) {
	var found string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if strings.Count(rel, string(os.PathSeparator)) >= maxSearchDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && (rel == suffix || strings.HasSuffix(rel, string(os.PathSeparator)+suffix)) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}

// Normalizer extracts archives and copies the interesting files into a
// flat staging layout.
type Normalizer struct {
	// LauncherName is the expected executable name, e.g. "signal-cli".
	LauncherName string
	// ScratchDir receives the per-run extraction directory. Empty means
	// the system temp dir.
	ScratchDir string
}

// Normalize extracts archivePath, locates the launcher, jars, and
// native libraries, and copies them into destDir as:
//
//	destDir/bin/<launcher>
//	destDir/lib/*.jar
//	destDir/lib/native/*.so
//
// The scratch extraction directory is removed on every return path.
func (n *Normalizer) Normalize(archivePath, destDir string) (*Layout, error) {
	log := logger.Logger()

	scratchRoot := n.ScratchDir
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	scratch := filepath.Join(scratchRoot, "bundle-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	log.Debugf("Extracting %s into %s", archivePath, scratch)
	if err := Extract(archivePath, scratch); err != nil {
		return nil, err
	}

	layout, err := locate(scratch, n.LauncherName)
	if err != nil {
		return nil, err
	}

	staged := &Layout{}

	binDir := filepath.Join(destDir, "bin")
	libDir := filepath.Join(destDir, "lib")
	nativeDir := filepath.Join(libDir, "native")
	for _, d := range []string{binDir, libDir, nativeDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("creating staging layout: %w", err)
		}
	}

	launcherDest := filepath.Join(binDir, n.LauncherName)
	if err := copyFile(layout.Launcher, launcherDest, 0755); err != nil {
		return nil, err
	}
	staged.Launcher = launcherDest

	for _, jar := range layout.Jars {
		dest := filepath.Join(libDir, filepath.Base(jar))
		if err := copyFile(jar, dest, 0644); err != nil {
			return nil, err
		}
		staged.Jars = append(staged.Jars, dest)
	}
	for _, lib := range layout.NativeLibs {
		dest := filepath.Join(nativeDir, filepath.Base(lib))
		if err := copyFile(lib, dest, 0755); err != nil {
			return nil, err
		}
		staged.NativeLibs = append(staged.NativeLibs, dest)
	}

	log.Infof("Normalized bundle: launcher=%s jars=%d native=%d",
		filepath.Base(staged.Launcher), len(staged.Jars), len(staged.NativeLibs))
	return staged, nil
}

// locate resolves the launcher and collects jars and native libraries
// from the extracted tree.
func locate(root, launcherName string) (*Layout, error) {
	log := logger.Logger()
	layout := &Layout{}

	for _, loc := range launcherLocators {
		if p, ok := loc.find(root, launcherName); ok {
			log.Debugf("Launcher found at %s", loc.desc)
			layout.Launcher = p
			break
		}
	}
	if layout.Launcher == "" {
		return nil, fmt.Errorf("%w: launcher %q not found in extracted bundle", errdefs.ErrArtifactNotFound, launcherName)
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		name := info.Name()
		switch {
		case strings.HasSuffix(name, ".jar"):
			layout.Jars = append(layout.Jars, path)
		case strings.HasPrefix(name, "libsignal_jni") && strings.HasSuffix(name, ".so"):
			layout.NativeLibs = append(layout.NativeLibs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning extracted bundle: %w", err)
	}

	if len(layout.Jars) == 0 {
		return nil, fmt.Errorf("%w: no jar files in extracted bundle", errdefs.ErrArtifactNotFound)
	}
	return layout, nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}
