// Package rpm renders the spec document and drives rpmbuild.
package rpm

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/magicbot/signal-rpm-packager/internal/pkgver"
)

// FileEntry is one installed path in the %files manifest.
type FileEntry struct {
	// Attr is an optional %attr(...) or %dir prefix, already formatted.
	Attr string
	Path string
}

// SpecData is everything the spec template consumes.
type SpecData struct {
	Name        string
	Version     string
	Release     int
	Summary     string
	License     string
	URL         string
	BuildArch   string
	Requires    []string
	Description string

	PreInstall    string
	PostInstall   string
	PreUninstall  string
	PostUninstall string

	Install string
	Files   []FileEntry
}

const specTemplate = `Name:           {{.Name}}
Version:        {{.Version}}
Release:        {{.Release}}%{?dist}
Summary:        {{.Summary}}
License:        {{.License}}
URL:            {{.URL}}
Source0:        %{name}-%{version}.tar.gz
BuildArch:      {{.BuildArch}}
{{- range .Requires}}
Requires:       {{.}}
{{- end}}

%description
{{.Description}}

%prep
%setup -q

%install
{{.Install}}
{{- if .PreInstall}}

%pre
{{.PreInstall}}
{{- end}}
{{- if .PostInstall}}

%post
{{.PostInstall}}
{{- end}}
{{- if .PreUninstall}}

%preun
{{.PreUninstall}}
{{- end}}
{{- if .PostUninstall}}

%postun
{{.PostUninstall}}
{{- end}}

%files
{{- range .Files}}
{{if .Attr}}{{.Attr}} {{end}}{{.Path}}
{{- end}}

%changelog
`

// Render produces the spec document for the given data.
func Render(data *SpecData) (string, error) {
	tmpl, err := template.New("spec").Parse(specTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing spec template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering spec: %w", err)
	}
	return b.String(), nil
}

// DaemonSpec builds the spec data for the magicbot daemon package.
func DaemonSpec(req pkgver.Request) *SpecData {
	return &SpecData{
		Name:      req.Name,
		Version:   req.Version,
		Release:   req.Release,
		Summary:   "Signal group moderation daemon",
		License:   "Proprietary",
		URL:       "https://github.com/magicbot/magicbot",
		BuildArch: req.Arch,
		Requires:  []string{"signal-cli", "qrencode"},
		Description: "MagicBot watches configured Signal groups and enforces keyword\n" +
			"rules, welcome messages, and group permissions through signal-cli.",
		Install: strings.Join([]string{
			"install -D -m 0755 magicbot %{buildroot}/usr/bin/magicbot",
			"install -D -m 0644 magicbot.service %{buildroot}/usr/lib/systemd/system/magicbot.service",
			"install -d -m 0750 %{buildroot}/var/lib/magicbot",
			"install -d -m 0750 %{buildroot}/var/log/magicbot",
		}, "\n"),
		PreInstall: strings.Join([]string{
			"getent group magicbot >/dev/null || groupadd -r magicbot",
			"getent passwd magicbot >/dev/null || useradd -r -g magicbot -d /var/lib/magicbot -s /sbin/nologin magicbot",
		}, "\n"),
		PostInstall: strings.Join([]string{
			"chown -R magicbot:magicbot /var/lib/magicbot /var/log/magicbot",
			"systemctl daemon-reload >/dev/null 2>&1 || :",
			"systemctl preset magicbot.service >/dev/null 2>&1 || :",
		}, "\n"),
		PreUninstall: strings.Join([]string{
			"if [ $1 -eq 0 ]; then",
			"  systemctl --no-reload disable --now magicbot.service >/dev/null 2>&1 || :",
			"fi",
		}, "\n"),
		PostUninstall: strings.Join([]string{
			"systemctl daemon-reload >/dev/null 2>&1 || :",
		}, "\n"),
		Files: []FileEntry{
			{Attr: "%attr(0755,root,root)", Path: "/usr/bin/magicbot"},
			{Attr: "%attr(0644,root,root)", Path: "/usr/lib/systemd/system/magicbot.service"},
			{Attr: "%dir %attr(0750,magicbot,magicbot)", Path: "/var/lib/magicbot"},
			{Attr: "%dir %attr(0750,magicbot,magicbot)", Path: "/var/log/magicbot"},
		},
	}
}

// SignalCLISpec builds the spec data for the signal-cli package. jars
// and nativeLibs are the staged lib/ basenames enumerated in %files.
func SignalCLISpec(req pkgver.Request, jars, nativeLibs []string) *SpecData {
	installLines := []string{
		"install -d -m 0755 %{buildroot}/opt/signal-cli/bin",
		"install -d -m 0755 %{buildroot}/opt/signal-cli/lib",
		"install -m 0755 bin/signal-cli %{buildroot}/opt/signal-cli/bin/signal-cli",
		"cp -p lib/*.jar %{buildroot}/opt/signal-cli/lib/",
		"install -d -m 0755 %{buildroot}/usr/bin",
		"ln -s /opt/signal-cli/bin/signal-cli %{buildroot}/usr/bin/signal-cli",
	}

	files := []FileEntry{
		{Attr: "%dir", Path: "/opt/signal-cli"},
		{Attr: "%dir", Path: "/opt/signal-cli/bin"},
		{Attr: "%dir", Path: "/opt/signal-cli/lib"},
		{Attr: "%attr(0755,root,root)", Path: "/opt/signal-cli/bin/signal-cli"},
		{Path: "/usr/bin/signal-cli"},
	}
	for _, jar := range jars {
		files = append(files, FileEntry{Path: "/opt/signal-cli/lib/" + jar})
	}
	for _, lib := range nativeLibs {
		files = append(files, FileEntry{Attr: "%attr(0755,root,root)", Path: "/opt/signal-cli/lib/native/" + lib})
	}
	if len(nativeLibs) > 0 {
		installLines = append(installLines,
			"install -d -m 0755 %{buildroot}/opt/signal-cli/lib/native",
			"cp -p lib/native/*.so %{buildroot}/opt/signal-cli/lib/native/")
		files = append(files, FileEntry{Attr: "%dir", Path: "/opt/signal-cli/lib/native"})
	}

	return &SpecData{
		Name:      req.Name,
		Version:   req.Version,
		Release:   req.Release,
		Summary:   "Command-line interface for the Signal messenger",
		License:   "GPLv3",
		URL:       "https://github.com/AsamK/signal-cli",
		BuildArch: req.Arch,
		Requires:  []string{"java-21-openjdk-headless"},
		Description: "signal-cli provides a command-line and JSON-RPC interface for the\n" +
			"Signal messenger, suitable for servers and bots.",
		Install: strings.Join(installLines, "\n"),
		Files:   files,
	}
}
