// Package logging builds the process logger, the same way
// internal/app.New builds one: a logrus.Logger whose level and
// formatter come straight out of the app config.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
)

// New builds a logrus.Logger configured from cfg.LogLevel/cfg.LogFormat.
// An unparsable level falls back to Info rather than failing startup.
func New(cfg config.AppConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
