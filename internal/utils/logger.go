package utils

import (
	"github.com/sirupsen/logrus" // Structured logging
)

// SetupLogger configures the standard logger: JSON in production, timestamped
// text otherwise
func SetupLogger(isProd bool) {
	if isProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
