package rpm

import (
	"fmt"
	"strings"
	"text/template"
)

// UnitData parameterizes the generated systemd service unit.
type UnitData struct {
	Description string
	ExecStart   string
	User        string
	RestartSec  int
}

const unitTemplate = `[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
Restart=always
RestartSec={{.RestartSec}}
User={{.User}}
WorkingDirectory=/

[Install]
WantedBy=multi-user.target
`

// RenderUnit produces the systemd unit document.
func RenderUnit(data *UnitData) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing unit template: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering unit: %w", err)
	}
	return b.String(), nil
}

// DaemonUnit is the unit shipped inside the magicbot package.
func DaemonUnit() *UnitData {
	return &UnitData{
		Description: "MagicBot (Signal) daemon",
		ExecStart:   "/usr/bin/magicbot --daemon",
		User:        "root",
		RestartSec:  2,
	}
}
