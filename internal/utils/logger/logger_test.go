package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLoggerIsNeverNil(t *testing.T) {
	Init(nil)
	if Logger() == nil {
		t.Fatal("Logger must return a usable logger before initialization")
	}
	Logger().Infof("no-op sink accepts writes")
}

func TestInitWithLevelAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "INFO"} {
		if err := InitWithLevel(level); err != nil {
			t.Fatalf("expected level %q to be accepted: %v", level, err)
		}
		if Logger() == nil {
			t.Fatal("logger not installed")
		}
	}
}

func TestInitWithLevelRejectsUnknownLevel(t *testing.T) {
	if err := InitWithLevel("loud"); err == nil {
		t.Fatal("expected unknown level to be rejected")
	}
}

func TestParseLevelMapping(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
