package rpm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
	"github.com/magicbot/signal-rpm-packager/internal/pkgver"
)

func TestBuildInvokesRpmbuildWithTopdir(t *testing.T) {
	var captured string
	b := &Builder{
		Topdir: "/home/user/rpmbuild",
		Run: func(cmdStr string, sudo bool, envVal []string) (string, error) {
			captured = cmdStr
			if sudo {
				t.Fatal("rpmbuild must not run under sudo")
			}
			return "", nil
		},
	}

	if err := b.Build("/home/user/rpmbuild/SPECS/magicbot.spec"); err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"rpmbuild -bb", "_topdir /home/user/rpmbuild", "SPECS/magicbot.spec"} {
		if !strings.Contains(captured, want) {
			t.Fatalf("command %q missing %q", captured, want)
		}
	}
}

func TestBuildWrapsToolFailure(t *testing.T) {
	b := &Builder{
		Topdir: "/tmp/rpmbuild",
		Run: func(cmdStr string, sudo bool, envVal []string) (string, error) {
			return "error: Bad exit status from %install", fmt.Errorf("exit status 1")
		},
	}

	err := b.Build("/tmp/rpmbuild/SPECS/x.spec")
	if !errors.Is(err, errdefs.ErrPackageBuildFailed) {
		t.Fatalf("expected PackageBuildFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Bad exit status") {
		t.Fatalf("tool output should be preserved in the error: %v", err)
	}
}

func TestVerifyBuiltFailsWhenNoPackageExists(t *testing.T) {
	b := &Builder{Topdir: t.TempDir()}
	req := pkgver.Request{Name: "magicbot", Version: "1.0.0", Release: 1, Arch: "x86_64"}
	_, err := b.VerifyBuilt(req)
	if !errors.Is(err, errdefs.ErrPackageBuildFailed) {
		t.Fatalf("expected PackageBuildFailed for missing package, got %v", err)
	}
}

func TestHasReleasePrefixToleratesDistSuffix(t *testing.T) {
	cases := []struct {
		release string
		want    int
		ok      bool
	}{
		{"1", 1, true},
		{"1.fc40", 1, true},
		{"1.el9", 1, true},
		{"12", 1, false},
		{"2", 1, false},
		{"1fc40", 1, false},
	}
	for _, c := range cases {
		if got := hasReleasePrefix(c.release, c.want); got != c.ok {
			t.Fatalf("hasReleasePrefix(%q, %d) = %v, want %v", c.release, c.want, got, c.ok)
		}
	}
}
