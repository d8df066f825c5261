// Package logger prints diagnostics for the idfflash CLI.
//
// Nothing is printed until SetVerbose(true); after that debug, info and
// warning lines go to stderr as "[LEVEL] message". Frame traces the raw
// bytes exchanged with the ROM loader.
package logger

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxFrameBytes caps how much of a frame Frame prints.
const maxFrameBytes = 32

var (
	// level is DebugLevel when verbose and above FatalLevel otherwise.
	level = zap.NewAtomicLevelAt(quietLevel)

	mu     sync.RWMutex
	output io.Writer = os.Stderr
	sugar            = newLogger(os.Stderr)
)

const quietLevel = zapcore.FatalLevel + 1

func newLogger(w io.Writer) *zap.SugaredLogger {
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      bracketLevelEncoder,
		ConsoleSeparator: " ",
	})
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level)).Sugar()
}

func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// SetVerbose turns diagnostics on or off.
func SetVerbose(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(quietLevel)
}

// IsVerbose reports whether diagnostics are on.
func IsVerbose() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// SetOutput redirects diagnostics, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	_ = sugar.Sync()
	output = w
	sugar = newLogger(w)
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debug logs a formatted debug line.
func Debug(format string, args ...any) {
	current().Debugf(format, args...)
}

// Info logs a formatted info line.
func Info(format string, args ...any) {
	current().Infof(format, args...)
}

// Warn logs a formatted warning.
func Warn(format string, args ...any) {
	current().Warnf(format, args...)
}

// Section prints a "=== name ===" header between phases of an operation.
func Section(name string) {
	if !IsVerbose() {
		return
	}
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "\n=== %s ===\n", name)
}

// Frame logs a protocol frame as hex with its direction and full length.
// Frames longer than maxFrameBytes are cut short.
func Frame(dir string, data []byte) {
	if !IsVerbose() {
		return
	}
	shown := data
	if len(shown) > maxFrameBytes {
		shown = shown[:maxFrameBytes]
	}
	current().Debugw("frame", "dir", dir, "len", len(data), "bytes", hex.EncodeToString(shown))
}

// Sync flushes buffered log entries.
func Sync() error {
	return current().Sync()
}
