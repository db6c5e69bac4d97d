package diagnostics

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNewReporterWithoutDSN(t *testing.T) {
	r, closeFn, err := NewReporter("")
	if err != nil {
		t.Fatalf("NewReporter() error = %v", err)
	}
	if _, ok := r.(NopReporter); !ok {
		t.Errorf("NewReporter(\"\") = %T, want NopReporter", r)
	}
	r.Report(errors.New("ignored"), nil)
	closeFn()
}

func TestNewReporterBadDSN(t *testing.T) {
	if _, _, err := NewReporter("::not a dsn"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetOutput(os.Stderr)

	var buf bytes.Buffer
	SetupLogging(&buf, false)
	log.Debug("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("quiet logging wrote %q", buf.String())
	}

	buf.Reset()
	SetupLogging(&buf, true)
	log.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug logging wrote %q", buf.String())
	}
}
