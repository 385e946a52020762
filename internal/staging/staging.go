// Package staging manages the rpmbuild directory tree for one run.
// The tree is exclusive to a single run; leftovers for the same
// package/version from a previous run are wiped before population so no
// stale file leaks into the build.
package staging

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/magicbot/signal-rpm-packager/internal/utils/logger"
)

// Subdirectories of the staging root, as rpmbuild expects them.
var treeDirs = []string{"BUILD", "SOURCES", "SPECS", "RPMS", "SRPMS", "BUILDROOT"}

// Area is the staging tree for one package build.
type Area struct {
	Root    string
	name    string
	version string
}

// Prepare creates the staging tree under root and removes any prior
// artifacts for the same package and version.
func Prepare(root, name, version string) (*Area, error) {
	log := logger.Logger()

	for _, d := range treeDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, fmt.Errorf("creating staging tree: %w", err)
		}
	}

	a := &Area{Root: root, name: name, version: version}

	// Wipe leftovers from a previous run of the same version.
	stale := []string{
		a.SourceTreeDir(),
		a.TarballPath(),
		a.SpecPath(),
	}
	for _, p := range stale {
		if err := os.RemoveAll(p); err != nil {
			return nil, fmt.Errorf("removing stale %s: %w", p, err)
		}
	}

	log.Debugf("Prepared staging area under %s for %s-%s", root, name, version)
	return a, nil
}

// SourcesDir returns the SOURCES subdirectory.
func (a *Area) SourcesDir() string { return filepath.Join(a.Root, "SOURCES") }

// SpecsDir returns the SPECS subdirectory.
func (a *Area) SpecsDir() string { return filepath.Join(a.Root, "SPECS") }

// RPMSDir returns the RPMS subdirectory.
func (a *Area) RPMSDir() string { return filepath.Join(a.Root, "RPMS") }

// SourceTreeDir is the working directory the source tree is staged in
// before it is tarred, named <name>-<version> as %setup expects.
func (a *Area) SourceTreeDir() string {
	return filepath.Join(a.Root, "BUILD", fmt.Sprintf("%s-%s", a.name, a.version))
}

// TarballPath is SOURCES/<name>-<version>.tar.gz.
func (a *Area) TarballPath() string {
	return filepath.Join(a.SourcesDir(), fmt.Sprintf("%s-%s.tar.gz", a.name, a.version))
}

// SpecPath is SPECS/<name>.spec.
func (a *Area) SpecPath() string {
	return filepath.Join(a.SpecsDir(), a.name+".spec")
}

// WriteTarball tars the staged source tree into SOURCES, with every
// path prefixed <name>-<version>/ so %setup -q unpacks cleanly.
func (a *Area) WriteTarball() (string, error) {
	log := logger.Logger()

	srcDir := a.SourceTreeDir()
	if _, err := os.Stat(srcDir); err != nil {
		return "", fmt.Errorf("source tree %s not staged: %w", srcDir, err)
	}

	out, err := os.Create(a.TarballPath())
	if err != nil {
		return "", fmt.Errorf("creating tarball: %w", err)
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	tw := tar.NewWriter(gzw)

	prefix := fmt.Sprintf("%s-%s", a.name, a.version)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = prefix + "/" + filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		gzw.Close()
		return "", fmt.Errorf("writing tarball: %w", err)
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gzw.Close(); err != nil {
		return "", err
	}

	log.Infof("Wrote source tarball %s", a.TarballPath())
	return a.TarballPath(), nil
}

// StageFile copies src into the source tree at relPath, creating parent
// directories as needed.
func (a *Area) StageFile(src, relPath string, mode os.FileMode) error {
	dest := filepath.Join(a.SourceTreeDir(), relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("staging %s: %w", relPath, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("staging %s: %w", relPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("staging %s: %w", relPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("staging %s: %w", relPath, err)
	}
	return nil
}

// StageContent writes literal content into the source tree at relPath.
func (a *Area) StageContent(content string, relPath string, mode os.FileMode) error {
	dest := filepath.Join(a.SourceTreeDir(), relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("staging %s: %w", relPath, err)
	}
	if err := os.WriteFile(dest, []byte(content), mode); err != nil {
		return fmt.Errorf("staging %s: %w", relPath, err)
	}
	return nil
}

// StageTree copies every regular file under srcDir into the source tree
// under relBase, preserving relative paths and execute bits.
func (a *Area) StageTree(srcDir, relBase string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		mode := os.FileMode(0644)
		if info.Mode()&0111 != 0 {
			mode = 0755
		}
		return a.StageFile(path, filepath.Join(relBase, rel), mode)
	})
}

// WriteSpec writes the rendered spec document into SPECS.
func (a *Area) WriteSpec(content string) (string, error) {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(a.SpecPath(), []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing spec: %w", err)
	}
	return a.SpecPath(), nil
}
