package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
)

func TestNew_ParsesValidLevel(t *testing.T) {
	logger := New(config.AppConfig{LogLevel: "debug", LogFormat: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestNew_UnparsableLevelFallsBackToInfo(t *testing.T) {
	logger := New(config.AppConfig{LogLevel: "not-a-level", LogFormat: "text"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, isText := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
