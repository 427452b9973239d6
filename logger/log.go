package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the process logger.
type Config struct {
	Level      string `mapstructure:"level"`       // debug|info|warn|error
	Color      bool   `mapstructure:"color"`       // colored level names on stdout
	File       string `mapstructure:"file"`        // optional rotating file, empty disables
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after this size
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var (
	level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	log   atomic.Pointer[zap.Logger]
)

func init() {
	log.Store(build(Config{Color: true}))
}

func encoderConfig(color bool) zapcore.EncoderConfig {
	enc := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	if color {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return enc
}

func build(c Config) *zap.Logger {
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig(c.Color)),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}
	if c.File != "" {
		rotate := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig(false)),
			zapcore.AddSync(rotate),
			level,
		))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// Init rebuilds the process logger from c.
func Init(c Config) error {
	if c.Level != "" {
		if err := SetLevel(c.Level); err != nil {
			return err
		}
	}
	log.Store(build(c))
	return nil
}

// SetLevel changes the level of every logger handed out so far.
func SetLevel(lvl string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(lvl)))); err != nil {
		return fmt.Errorf("logger: bad level %q: %w", lvl, err)
	}
	level.SetLevel(l)
	return nil
}

func Level() string { return level.Level().String() }

// L returns the process logger.
func L() *zap.Logger { return log.Load() }

// Named returns a child logger, e.g. logger.Named("chat").
func Named(name string) *zap.Logger { return L().Named(name) }

func Sync() { _ = L().Sync() }

// 快捷方法
func Info(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	L().WithOptions(zap.AddCallerSkip(1)).Info(fmt.Sprintf(format, args...))
}
func Warn(msg string, fields ...zap.Field)  { L().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...) }

func Errorf(format string, args ...interface{}) {
	L().WithOptions(zap.AddCallerSkip(1)).Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...) }
