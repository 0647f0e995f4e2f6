package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ZapLogger *zap.Logger
	Logger    *zap.SugaredLogger

	initialized bool
)

func init() {
	//library callers that never call InitLog get a silent logger
	ZapLogger = zap.NewNop()
	Logger = ZapLogger.Sugar()
}

func InitLog(outputPath []string, level zapcore.Level) {

	if initialized {
		panic("InitLog called somewhere")
	}
	var err error
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = outputPath

	cfg.Level.SetLevel(level)
	ZapLogger, err = cfg.Build()
	if err != nil {
		panic(err.Error())
	}
	Logger = ZapLogger.Sugar()
	initialized = true
}

// ParseLevel maps a config string such as "debug" or "warn" to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, err
	}
	return level, nil
}

// Sync flushes buffered log entries, ignoring the error stderr returns on
// some platforms.
func Sync() {
	_ = ZapLogger.Sync()
}
