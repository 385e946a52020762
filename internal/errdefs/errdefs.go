// Package errdefs defines the error taxonomy shared by every packaging
// stage. Stages wrap one of these sentinels with fmt.Errorf("...: %w", ...)
// so that callers can classify failures with errors.Is while the
// user-visible message keeps the full context chain.
package errdefs

import "errors"

var (
	// ErrInvalidVersion is reported when a supplied or discovered version
	// string does not match the accepted numeric dotted pattern.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrUnknownArgument is reported for unrecognized command line flags.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrMissingRequiredTool is reported by the preflight check when an
	// external command the pipeline shells out to is not installed.
	ErrMissingRequiredTool = errors.New("missing required tool")

	// ErrVersionDiscoveryFailed is reported when neither the release API
	// nor the release page scrape yields a usable stable version.
	ErrVersionDiscoveryFailed = errors.New("version discovery failed")

	// ErrDownloadFailed is reported on any non-success artifact transfer.
	ErrDownloadFailed = errors.New("download failed")

	// ErrArtifactNotFound is reported when an expected file cannot be
	// located inside an extracted bundle.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrVersionParseFailed is reported when a companion filename does not
	// match the expected name grammar.
	ErrVersionParseFailed = errors.New("version parse failed")

	// ErrUnsupportedArchitecture is reported for target architectures the
	// native library is not published for.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")

	// ErrInjectionVerificationFailed is reported when the rewritten jar
	// does not contain the injected native library entry.
	ErrInjectionVerificationFailed = errors.New("injection verification failed")

	// ErrPackageBuildFailed is reported verbatim when rpmbuild exits
	// non-zero.
	ErrPackageBuildFailed = errors.New("package build failed")
)
