/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log provides the rotated, structured logger every other package
// in this module logs through, mirroring the teacher's pkg/log call-site
// idiom (log.Infof/log.Warnf/log.Errorf/log.Debugf) without requiring its
// source, which the retrieval pack never carried.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

func init() {
	logger = newLogger(Options{})
}

// Options configures the package-level logger. The zero value logs
// human-readable output to stderr with no rotation, suitable for tests and
// CLI use; a non-empty Filename switches to a rotated lumberjack sink.
type Options struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      zapcore.Level
}

func newLogger(opts Options) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if opts.Filename != "" {
		maxSize := opts.MaxSizeMB
		if maxSize == 0 {
			maxSize = 100
		}
		maxBackups := opts.MaxBackups
		if maxBackups == 0 {
			maxBackups = 7
		}
		maxAge := opts.MaxAgeDays
		if maxAge == 0 {
			maxAge = 30
		}
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Filename,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   opts.Compress,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, opts.Level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// Init replaces the package-level logger, typically called once from a CLI
// or long-running host process before any connection or pool is created.
func Init(opts Options) {
	mu.Lock()
	logger = newLogger(opts)
	mu.Unlock()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

func Debug(args ...interface{}) { current().Debug(args...) }
func Info(args ...interface{})  { current().Info(args...) }
func Warn(args ...interface{})  { current().Warn(args...) }
func Error(args ...interface{}) { current().Error(args...) }

// Sync flushes any buffered log entries, which callers should do before
// process exit.
func Sync() error { return current().Sync() }
