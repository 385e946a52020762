package staging

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrepareCreatesTheFullTree(t *testing.T) {
	root := t.TempDir()
	if _, err := Prepare(root, "signal-cli", "1.2.3"); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	for _, d := range []string{"BUILD", "SOURCES", "SPECS", "RPMS", "SRPMS", "BUILDROOT"} {
		fi, err := os.Stat(filepath.Join(root, d))
		if err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s: %v", d, err)
		}
	}
}

func TestPrepareWipesStaleArtifactsForSameVersion(t *testing.T) {
	root := t.TempDir()
	a, err := Prepare(root, "signal-cli", "1.2.3")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := a.StageContent("old", "bin/signal-cli", 0755); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := os.WriteFile(a.TarballPath(), []byte("old-tarball"), 0644); err != nil {
		t.Fatalf("write stale tarball: %v", err)
	}
	if _, err := a.WriteSpec("Name: signal-cli"); err != nil {
		t.Fatalf("write stale spec: %v", err)
	}

	if _, err := Prepare(root, "signal-cli", "1.2.3"); err != nil {
		t.Fatalf("re-prepare: %v", err)
	}

	for _, p := range []string{a.SourceTreeDir(), a.TarballPath(), a.SpecPath()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("stale %s should be gone", p)
		}
	}
}

func TestPrepareLeavesOtherVersionsAlone(t *testing.T) {
	root := t.TempDir()
	prior, err := Prepare(root, "signal-cli", "1.0.0")
	if err != nil {
		t.Fatalf("prepare prior: %v", err)
	}
	if err := prior.StageContent("keep", "bin/signal-cli", 0755); err != nil {
		t.Fatalf("stage prior: %v", err)
	}

	if _, err := Prepare(root, "signal-cli", "1.2.3"); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := os.Stat(prior.SourceTreeDir()); err != nil {
		t.Fatalf("other-version tree must survive: %v", err)
	}
}

func TestWriteTarballUsesSetupCompatiblePrefix(t *testing.T) {
	root := t.TempDir()
	a, err := Prepare(root, "magicbot", "2.0.1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := a.StageContent("#!/bin/sh\n", "magicbot", 0755); err != nil {
		t.Fatalf("stage binary: %v", err)
	}
	if err := a.StageContent("[Unit]\n", "magicbot.service", 0644); err != nil {
		t.Fatalf("stage unit: %v", err)
	}

	tarball, err := a.WriteTarball()
	if err != nil {
		t.Fatalf("write tarball: %v", err)
	}
	if filepath.Base(tarball) != "magicbot-2.0.1.tar.gz" {
		t.Fatalf("unexpected tarball name %q", tarball)
	}

	f, err := os.Open(tarball)
	if err != nil {
		t.Fatalf("open tarball: %v", err)
	}
	defer f.Close()
	gzr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gzr)

	names := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tarball: %v", err)
		}
		if !strings.HasPrefix(hdr.Name, "magicbot-2.0.1/") {
			t.Fatalf("entry %q lacks the package-version prefix", hdr.Name)
		}
		names[hdr.Name] = true
	}
	if !names["magicbot-2.0.1/magicbot"] || !names["magicbot-2.0.1/magicbot.service"] {
		t.Fatalf("expected staged files in tarball, got %v", names)
	}
}

func TestStageFilePreservesMode(t *testing.T) {
	root := t.TempDir()
	a, err := Prepare(root, "magicbot", "1.0.0")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	src := filepath.Join(root, "input")
	if err := os.WriteFile(src, []byte("bin"), 0644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := a.StageFile(src, "bin/magicbot", 0755); err != nil {
		t.Fatalf("stage: %v", err)
	}

	fi, err := os.Stat(filepath.Join(a.SourceTreeDir(), "bin", "magicbot"))
	if err != nil {
		t.Fatalf("stat staged: %v", err)
	}
	if fi.Mode()&0111 == 0 {
		t.Fatal("staged file should be executable")
	}
}

func TestWriteSpecAppendsTrailingNewline(t *testing.T) {
	root := t.TempDir()
	a, err := Prepare(root, "magicbot", "1.0.0")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	path, err := a.WriteSpec("Name: magicbot")
	if err != nil {
		t.Fatalf("write spec: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read spec: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Fatal("spec must end with a newline")
	}
}
