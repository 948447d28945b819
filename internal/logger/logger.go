// Package logger provides the process-wide structured logger.
//
// steamcl runs as a single-threaded boot-time application, so a lazily
// initialised package-level singleton (rather than dependency-injecting a
// logger through every constructor) keeps call sites terse: every package
// in this repository calls logger.Logger() the same way the teacher
// codebase's packages did.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once  sync.Once
	log   *zap.SugaredLogger
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// Logger returns the process-wide SugaredLogger, constructing it on first use.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		log = newLogger().Sugar()
	})
	return log
}

// SetVerbose switches the logger between informational and debug level.
// The orchestrator calls this once the verbose flag file has been probed,
// mirroring the original loader's set_verbosity(0|1).
func SetVerbose(verbose bool) {
	if verbose {
		level.SetLevel(zap.DebugLevel)
	} else {
		level.SetLevel(zap.InfoLevel)
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if os.Getenv("STEAMCL_LOG_FORMAT") == "console" {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(consoleCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller())
}
