package observability

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures the process-wide logrus logger. Output is JSON so
// log collectors can index fields without parsing.
func SetupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(parseLogLevel(level))
}

func parseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
