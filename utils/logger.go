package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger. It discards everything until
// InitLogger is called, so packages can log from tests without setup.
var Logger = zap.NewNop()

func InitLogger(path string, debug bool) {
	if path == "" {
		path = "./logs/app.log"
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	level := zap.InfoLevel
	cores := []zapcore.Core{zapcore.NewCore(encoder, writer, level)}
	if debug {
		level = zap.DebugLevel
		cores = []zapcore.Core{
			zapcore.NewCore(encoder, writer, level),
			zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), level),
		}
	}

	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
