// Package config carries the packaging run configuration. Values come
// from built-in defaults, an optional YAML file, and environment
// overrides, in that order. The resolved Config is threaded through the
// pipeline stages as an explicit parameter.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var configSchema string

// SignalCLIConfig points at the upstream signal-cli release endpoints.
type SignalCLIConfig struct {
	// Repo is the owner/name pair used for release discovery.
	Repo string `yaml:"repo" json:"repo"`
	// APIBase is the root of the release-listing API.
	APIBase string `yaml:"apiBase" json:"apiBase"`
	// PageURL is the human-facing releases page used as the scrape
	// fallback when the API path is unusable.
	PageURL string `yaml:"pageUrl" json:"pageUrl"`
	// DownloadTemplate expands {version} into the release archive URL.
	DownloadTemplate string `yaml:"downloadTemplate" json:"downloadTemplate"`
}

// NativeConfig points at the secondary source for architecture-matched
// libsignal builds.
type NativeConfig struct {
	// DownloadTemplate expands {version} and {target} into the native
	// archive URL.
	DownloadTemplate string `yaml:"downloadTemplate" json:"downloadTemplate"`
}

// DaemonConfig points at the magicbot daemon release endpoints.
type DaemonConfig struct {
	Repo    string `yaml:"repo" json:"repo"`
	APIBase string `yaml:"apiBase" json:"apiBase"`
	PageURL string `yaml:"pageUrl" json:"pageUrl"`
	// DownloadTemplate expands {version} into the prebuilt binary URL.
	DownloadTemplate string `yaml:"downloadTemplate" json:"downloadTemplate"`
	// BinaryPath, when set, skips the download and packages a local build.
	BinaryPath string `yaml:"binaryPath" json:"binaryPath"`
}

// Config is the resolved packaging run configuration.
type Config struct {
	// Topdir is the rpmbuild staging root (BUILD, SOURCES, SPECS, ...).
	Topdir string `yaml:"topdir" json:"topdir"`

	SignalCLI SignalCLIConfig `yaml:"signalCli" json:"signalCli"`
	Native    NativeConfig    `yaml:"native" json:"native"`
	Daemon    DaemonConfig    `yaml:"daemon" json:"daemon"`
}

// Default returns the built-in configuration. The staging root is
// home-relative, matching where rpmbuild expects its tree.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}
	return &Config{
		Topdir: filepath.Join(home, "rpmbuild"),
		SignalCLI: SignalCLIConfig{
			Repo:             "AsamK/signal-cli",
			APIBase:          "https://api.github.com",
			PageURL:          "https://github.com/AsamK/signal-cli/releases",
			DownloadTemplate: "https://github.com/AsamK/signal-cli/releases/download/v{version}/signal-cli-{version}.tar.gz",
		},
		Native: NativeConfig{
			DownloadTemplate: "https://github.com/exquo/signal-libs-build/releases/download/libsignal_v{version}/libsignal_jni.so-v{version}-{target}.tar.gz",
		},
		Daemon: DaemonConfig{
			Repo:             "magicbot/magicbot",
			APIBase:          "https://api.github.com",
			PageURL:          "https://github.com/magicbot/magicbot/releases",
			DownloadTemplate: "https://github.com/magicbot/magicbot/releases/download/v{version}/magicbot-{version}-linux-amd64.tar.gz",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment overrides. The merged document is validated
// against the embedded schema before use.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := validate(data); err != nil {
			return nil, fmt.Errorf("validating config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPMBUILD_TOPDIR"); v != "" {
		cfg.Topdir = v
	}
	if v := os.Getenv("MAGICBOT_BINARY"); v != "" {
		cfg.Daemon.BinaryPath = v
	}
}

// validate checks the YAML document against the embedded JSON schema.
// The document is round-tripped through JSON first so the validator sees
// canonical types.
func validate(yamlData []byte) error {
	var doc any
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting to json: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonData, &jsonDoc); err != nil {
		return fmt.Errorf("reparsing json: %w", err)
	}

	sch, err := jsonschema.CompileString("config.schema.json", configSchema)
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	if err := sch.Validate(jsonDoc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// ExpandTemplate substitutes {version} and {target} placeholders in a
// URL template.
func ExpandTemplate(tmpl, version, target string) string {
	out := strings.ReplaceAll(tmpl, "{version}", version)
	return strings.ReplaceAll(out, "{target}", target)
}
