package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the process-wide structured logger.
	Logger *zap.SugaredLogger
	// JSONOutput reports whether Initialize selected the JSON encoder.
	JSONOutput bool
)

func init() {
	// Safe no-op until Initialize runs so library code can log unconditionally.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. JSON output targets machines (server mode);
// the console encoder writes to stderr so command output on stdout stays clean.
func Initialize(jsonOutput, debug bool) error {
	JSONOutput = jsonOutput
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		zl, err := config.Build()
		if err != nil {
			return err
		}
		Logger = zl.Sugar()
		return nil
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.TimeKey = ""
	enc.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stderr), level)
	Logger = zap.New(core).Sugar()
	return nil
}

// Set replaces the global logger. Tests use it with an observer core.
func Set(l *zap.Logger) {
	if l == nil {
		Logger = zap.NewNop().Sugar()
		return
	}
	Logger = l.Sugar()
}

// Sync flushes buffered entries; errors from syncing stderr are ignored.
func Sync() {
	_ = Logger.Sync()
}
