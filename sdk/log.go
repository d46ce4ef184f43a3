package sdk

import "go.uber.org/zap"

// log is the package logger; silent until the embedding program calls UseLogger.
var log = zap.NewNop()

// UseLogger sets the logger used by the hosts in this package.
func UseLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log = logger.Named("HOST")
}
