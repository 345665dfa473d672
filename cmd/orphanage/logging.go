package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger builds the root log entry, reading its level from ORPHANAGE_LOG
// (spec.md §6: "log level read from an environment variable, standard
// filter syntax"). An empty or unset variable defaults to info; a value
// logrus can't parse also falls back to info, with a warning rather than a
// startup failure, since a typo in a log-level env var shouldn't stop a
// detection run.
func newLogger() *logrus.Entry {
	base := logrus.New()
	base.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	if raw := os.Getenv("ORPHANAGE_LOG"); raw != "" {
		parsed, err := logrus.ParseLevel(raw)
		if err != nil {
			base.SetLevel(logrus.InfoLevel)
			entry := logrus.NewEntry(base)
			entry.WithField("value", raw).Warn("unparseable ORPHANAGE_LOG, defaulting to info")
			return entry
		}
		level = parsed
	}
	base.SetLevel(level)
	return logrus.NewEntry(base)
}
