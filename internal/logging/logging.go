// Package logging configures the process-wide structured logger.
// Grounded on the teacher's clog.NewWithPlugin idiom (every component
// gets its own named sub-logger) and on original_source/DNS/Logging.py,
// whose loguru-based logger a flat LOG_LEVEL env option configures;
// here that becomes logrus, the stack ankurs47-blocky uses for the
// same concern.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets the global logrus level and a deterministic
// text formatter, matching what a DNS proxy's operators expect to
// grep in a terminal rather than a log aggregator.
func Configure(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(parsed)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return nil
}

// NewWithPlugin returns a sub-logger tagged with the calling
// component's name, the logrus analogue of clog.NewWithPlugin.
func NewWithPlugin(name string) *logrus.Entry {
	return logrus.WithField("plugin", name)
}
