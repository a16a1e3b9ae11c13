package utils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	orig := logrus.StandardLogger().Formatter
	t.Cleanup(func() { logrus.SetFormatter(orig) })

	SetupLogger(true)
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	SetupLogger(false)
	f, ok := logrus.StandardLogger().Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
	assert.True(t, f.FullTimestamp)
}
