package rpm

import (
	"strings"
	"testing"
)

func TestRenderDaemonUnit(t *testing.T) {
	out, err := RenderUnit(DaemonUnit())
	if err != nil {
		t.Fatalf("render unit: %v", err)
	}

	for _, want := range []string{
		"[Unit]",
		"After=network-online.target",
		"ExecStart=/usr/bin/magicbot --daemon",
		"Restart=always",
		"RestartSec=2",
		"WantedBy=multi-user.target",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("unit missing %q:\n%s", want, out)
		}
	}
}
