package pkgver

import (
	"errors"
	"testing"

	"github.com/magicbot/signal-rpm-packager/internal/errdefs"
)

func TestValidateAcceptsNumericDottedVersions(t *testing.T) {
	for _, v := range []string{"1.2", "1.2.3", "0.13.18", "1.2.3.4", "10.0.200"} {
		if err := Validate(v, false); err != nil {
			t.Fatalf("expected %q to be accepted, got %v", v, err)
		}
	}
}

func TestValidateRejectsMalformedVersions(t *testing.T) {
	for _, v := range []string{"", "v1.2", "1", "1.2.3.4.5", "1.2-rc1", "1..2", "abc", "1.2.3 "} {
		err := Validate(v, false)
		if !errors.Is(err, errdefs.ErrInvalidVersion) {
			t.Fatalf("expected InvalidVersion for %q, got %v", v, err)
		}
	}
}

func TestValidateAllowsPrereleaseSuffixForDaemon(t *testing.T) {
	if err := Validate("1.4.0-rc1", true); err != nil {
		t.Fatalf("expected prerelease suffix to be accepted for daemon variant, got %v", err)
	}
	if err := Validate("1.4.0-rc1", false); !errors.Is(err, errdefs.ErrInvalidVersion) {
		t.Fatalf("expected prerelease suffix rejected outside daemon variant, got %v", err)
	}
}

func TestResolveVersionPrefersFlagOverEnvAndDiscovery(t *testing.T) {
	t.Setenv("TEST_PKG_VERSION", "9.9.9")
	called := false
	got, err := ResolveVersion("1.2.3", "TEST_PKG_VERSION", false, func() (string, error) {
		called = true
		return "8.8.8", nil
	})
	if err != nil {
		t.Fatalf("resolve version: %v", err)
	}
	if got != "1.2.3" {
		t.Fatalf("expected flag value to win, got %q", got)
	}
	if called {
		t.Fatal("discovery must not run when the flag is set")
	}
}

func TestResolveVersionFallsBackToEnvThenDiscovery(t *testing.T) {
	t.Setenv("TEST_PKG_VERSION", "2.3.4")
	got, err := ResolveVersion("", "TEST_PKG_VERSION", false, func() (string, error) {
		t.Fatal("discovery must not run when the env var is set")
		return "", nil
	})
	if err != nil {
		t.Fatalf("resolve version: %v", err)
	}
	if got != "2.3.4" {
		t.Fatalf("expected env value, got %q", got)
	}

	t.Setenv("TEST_PKG_VERSION", "")
	got, err = ResolveVersion("", "TEST_PKG_VERSION", false, func() (string, error) {
		return "3.4.5", nil
	})
	if err != nil {
		t.Fatalf("resolve version: %v", err)
	}
	if got != "3.4.5" {
		t.Fatalf("expected discovered value, got %q", got)
	}
}

func TestResolveVersionValidatesDiscoveredValue(t *testing.T) {
	_, err := ResolveVersion("", "TEST_PKG_VERSION_UNSET", false, func() (string, error) {
		return "not-a-version", nil
	})
	if !errors.Is(err, errdefs.ErrInvalidVersion) {
		t.Fatalf("expected InvalidVersion for discovered garbage, got %v", err)
	}
}

func TestResolveReleaseDefaultsToOne(t *testing.T) {
	t.Setenv("RPM_RELEASE", "")
	n, err := ResolveRelease("")
	if err != nil {
		t.Fatalf("resolve release: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected default release 1, got %d", n)
	}
}

func TestResolveReleaseReadsFlagAndEnv(t *testing.T) {
	n, err := ResolveRelease("3")
	if err != nil || n != 3 {
		t.Fatalf("expected release 3, got %d (%v)", n, err)
	}

	t.Setenv("RPM_RELEASE", "5")
	n, err = ResolveRelease("")
	if err != nil || n != 5 {
		t.Fatalf("expected release 5 from env, got %d (%v)", n, err)
	}
}

func TestResolveReleaseRejectsNonPositiveValues(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", "1.5"} {
		if _, err := ResolveRelease(raw); !errors.Is(err, errdefs.ErrInvalidVersion) {
			t.Fatalf("expected rejection for release %q, got %v", raw, err)
		}
	}
}

func TestRPMArchMapping(t *testing.T) {
	cases := map[string]string{
		"amd64":   "x86_64",
		"x86_64":  "x86_64",
		"arm64":   "aarch64",
		"aarch64": "aarch64",
		"riscv64": "riscv64",
	}
	for in, want := range cases {
		if got := RPMArch(in); got != want {
			t.Fatalf("RPMArch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRPMVersionMapsPrereleaseSuffix(t *testing.T) {
	cases := map[string]string{
		"1.4.0-rc1":      "1.4.0~rc1",
		"1.4.0-beta.2":   "1.4.0~beta.2",
		"0.13.18":        "0.13.18",
	}
	for in, want := range cases {
		if got := RPMVersion(in); got != want {
			t.Fatalf("RPMVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequestNVR(t *testing.T) {
	req := Request{Name: "signal-cli", Version: "1.2.3", Release: 1}
	if got := req.NVR(); got != "signal-cli-1.2.3-1" {
		t.Fatalf("unexpected NVR %q", got)
	}
}
