package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger writes rotating JSON logs under logDir and tees a console
// rendering to stderr so a foreground sweep stays observable.
func NewLogger(logDir string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	fileSync := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "reachcheck.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})

	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.TimeKey = "ts"

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), fileSync, zap.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), zap.InfoLevel),
	)
	return zap.New(core), nil
}
