package store

import "go.uber.org/zap"

var log = zap.NewNop()

// UseLogger sets the logger for the store and its gorm sessions.
func UseLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log = logger.Named("STOR")
}
