package main

import (
	"fmt"
	"os"
	"path/filepath"

	"commons_treasury/config"
	"commons_treasury/sdk"
	"commons_treasury/store"

	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initLogging builds the process logger: console output on stderr and, when a
// log file is configured, a rotating file next to it. Subsystem loggers are
// handed out here so every package writes to the same backend.
func initLogging(cfg config.LogConfig) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	closeFn := func() error { return nil }
	if cfg.File != "" {
		r, err := initLogRotator(cfg.File, cfg.RotateKB, cfg.MaxRolls)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(r), level))
		closeFn = r.Close
	}

	logger := zap.New(zapcore.NewTee(cores...))
	sdk.UseLogger(logger)
	store.UseLogger(logger)
	return logger.Named("MAIN"), closeFn, nil
}

// initLogRotator creates the log directory and a rotator writing logFile,
// rolling it in the same directory once it passes thresholdKB.
func initLogRotator(logFile string, thresholdKB int64, maxRolls int) (*rotator.Rotator, error) {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, thresholdKB, false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	return r, nil
}
