// Copyright (c) 2023 The winsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging provides logging functionality for winsync, it sets up a
// default logger (powered by go.uber.org/zap) that writes to stderr at
// WARN level and exposes functions to replace it with a custom one.
//
// The environment variables WINSYNC_LOGGING_LEVEL and WINSYNC_LOGGING_FILE
// override the defaults at process start: the former holds an integral
// zapcore.Level value, the latter a file path that is rotated by lumberjack.
package logging

import (
	"errors"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the minimal interface winsync logs through. It is satisfied by
// *zap.SugaredLogger and by most leveled loggers in the ecosystem.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

var (
	defaultLogger        Logger
	defaultLoggingLevel  zapcore.Level
	defaultFlusher       func() error
	errInvalidComponents = errors.New("logging: invalid option value")
)

func init() {
	lvl := os.Getenv("WINSYNC_LOGGING_LEVEL")
	if len(lvl) > 0 {
		if i, err := strconv.ParseInt(lvl, 10, 8); err == nil {
			defaultLoggingLevel = zapcore.Level(i)
		}
	} else {
		defaultLoggingLevel = zapcore.WarnLevel
	}

	fileName := os.Getenv("WINSYNC_LOGGING_FILE")
	if len(fileName) > 0 {
		var err error
		defaultLogger, defaultFlusher, err = CreateLoggerAsLocalFile(fileName, defaultLoggingLevel)
		if err == nil {
			return
		}
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stderr),
		defaultLoggingLevel,
	)
	zapLogger := zap.New(core)
	defaultLogger = zapLogger.Sugar()
	defaultFlusher = zapLogger.Sync
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// Option tweaks CreateLoggerAsLocalFile's lumberjack setup.
type Option func(c *fileConfig)

type fileConfig struct {
	maxSize    int // megabytes
	maxBackups int
	maxAge     int // days
}

// WithMaxSize sets the maximum size in megabytes of a log file before it gets
// rotated.
func WithMaxSize(mb int) Option {
	return func(c *fileConfig) {
		c.maxSize = mb
	}
}

// WithMaxBackups sets the maximum number of rotated log files to retain.
func WithMaxBackups(n int) Option {
	return func(c *fileConfig) {
		c.maxBackups = n
	}
}

// WithMaxAge sets the maximum number of days to retain rotated log files.
func WithMaxAge(days int) Option {
	return func(c *fileConfig) {
		c.maxAge = days
	}
}

// CreateLoggerAsLocalFile setups the logger by local file path, the returned
// flush function must be called before process exit to drain buffered entries.
func CreateLoggerAsLocalFile(localFilePath string, logLevel zapcore.Level, opts ...Option) (logger Logger, flush func() error, err error) {
	if len(localFilePath) == 0 {
		return nil, nil, errInvalidComponents
	}

	cfg := fileConfig{maxSize: 100, maxBackups: 2, maxAge: 15}
	for _, opt := range opts {
		opt(&cfg)
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   localFilePath,
		MaxSize:    cfg.maxSize,
		MaxBackups: cfg.maxBackups,
		MaxAge:     cfg.maxAge,
	}

	ws := zapcore.AddSync(lumberJackLogger)
	zapCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), ws, logLevel)
	zapLogger := zap.New(zapCore, zap.AddCaller())
	return zapLogger.Sugar(), zapLogger.Sync, nil
}

// SetDefaultLoggerAndFlusher replaces the default logger. Passing a nil
// flusher is allowed when the logger needs no draining.
func SetDefaultLoggerAndFlusher(logger Logger, flusher func() error) {
	if logger == nil {
		return
	}
	defaultLogger, defaultFlusher = logger, flusher
}

// LogLevel tells what the default logging level is.
func LogLevel() string {
	return defaultLoggingLevel.String()
}

// Cleanup flushes any buffered log entries on the default logger.
func Cleanup() {
	if defaultFlusher != nil {
		_ = defaultFlusher()
	}
}

// Error prints err if it's not nil.
func Error(err error) {
	if err != nil {
		defaultLogger.Errorf("error occurs during runtime, %v", err)
	}
}

// Debugf logs messages at DEBUG level.
func Debugf(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Infof logs messages at INFO level.
func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warnf logs messages at WARN level.
func Warnf(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Errorf logs messages at ERROR level.
func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// Fatalf logs messages at FATAL level and then exits.
func Fatalf(format string, args ...interface{}) {
	defaultLogger.Fatalf(format, args...)
}
