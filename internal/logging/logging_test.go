package logging_test

import (
	"testing"

	"github.com/a11ygate/a11ygate/internal/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want logging.Level
	}{
		{"error", logging.LevelError},
		{"WARN", logging.LevelWarn},
		{"warning", logging.LevelWarn},
		{"info", logging.LevelInfo},
		{"debug", logging.LevelDebug},
		{"  Debug ", logging.LevelDebug},
		{"", logging.LevelInfo},
		{"verbose", logging.LevelInfo},
	}
	for _, tc := range cases {
		if got := logging.ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestStdoutLogger_ImplementsLogger(t *testing.T) {
	t.Parallel()

	var _ logging.Logger = logging.NewStdoutLogger("test")
	var _ logging.Logger = logging.NewStdoutLoggerAt("test", logging.LevelError)
}
