// Package diagnostics wires developer-facing logging and error reporting.
// Nothing here is shown to the person holding the phone.
package diagnostics

import (
	"fmt"
	"io"

	"github.com/getsentry/raven-go"
	log "github.com/sirupsen/logrus"
)

// Reporter receives failures that were collapsed into a generic status.
type Reporter interface {
	Report(err error, tags map[string]string)
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(error, map[string]string) {}

// SentryReporter forwards failures to a Sentry project.
type SentryReporter struct {
	client *raven.Client
}

func NewSentryReporter(dsn string) (*SentryReporter, error) {
	client, err := raven.New(dsn)
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &SentryReporter{client: client}, nil
}

func (r *SentryReporter) Report(err error, tags map[string]string) {
	id := r.client.CaptureError(err, tags)
	log.WithField("event_id", id).Debug("[Diagnostics] Reported failure")
}

func (r *SentryReporter) Close() {
	r.client.Wait()
	r.client.Close()
}

// SetupLogging configures the global logrus logger.
func SetupLogging(out io.Writer, debug bool) {
	log.SetOutput(out)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// NewReporter returns a Sentry reporter when dsn is set and a no-op one otherwise.
func NewReporter(dsn string) (Reporter, func(), error) {
	if dsn == "" {
		return NopReporter{}, func() {}, nil
	}
	r, err := NewSentryReporter(dsn)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
