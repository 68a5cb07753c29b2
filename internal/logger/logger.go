// Package logger is the process-wide structured logger. Warnings and errors are
// sampled on output, but their counters are always incremented so the metrics
// endpoint stays exact.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate atomic.Int32
	programLevel    = new(slog.LevelVar)
)

// Counters for the metrics endpoint
var (
	TotalErrors    atomic.Int64
	TotalWarnings  atomic.Int64
	Total5xxErrors atomic.Int64
	Total4xxErrors atomic.Int64
	Total400Errors atomic.Int64
	Total404Errors atomic.Int64
	Total422Errors atomic.Int64
	SlowRequests   atomic.Int64
)

func init() {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	programLevel.Set(level)

	// ERROR_SAMPLE_RATE=N logs 1 of every N warnings/errors; 1 logs all of them.
	errorSampleRate.Store(100)
	if sampleStr := os.Getenv("ERROR_SAMPLE_RATE"); sampleStr != "" {
		if rate, err := strconv.Atoi(sampleStr); err == nil && rate > 0 {
			errorSampleRate.Store(int32(rate))
		}
	}

	SetOutput(os.Stdout)
}

// SetOutput replaces the JSON handler's destination, keeping the current level.
func SetOutput(w io.Writer) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(Logger)
}

// SetSampleRate logs 1 of every rate warnings and errors.
func SetSampleRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	errorSampleRate.Store(int32(rate))
}

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to slog.Level. An empty name is INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

func shouldSample() bool {
	rate := errorSampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn is sampled; TotalWarnings always counts it.
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error is sampled; TotalErrors always counts it.
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs and exits with status 1.
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// ErrorHttp5xx counts a server error response.
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx counts a client error response by status.
func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	switch status {
	case 400:
		Total400Errors.Add(1)
	case 404:
		Total404Errors.Add(1)
	case 422:
		Total422Errors.Add(1)
	}
}

// WarnSlowRequest counts a request that exceeded the slow-request threshold.
func WarnSlowRequest() {
	SlowRequests.Add(1)
	TotalWarnings.Add(1)
}

// Counters is a point-in-time copy of the counters.
type Counters struct {
	TotalErrors    int64 `json:"totalErrors"`
	TotalWarnings  int64 `json:"totalWarnings"`
	Total5xxErrors int64 `json:"total5xxErrors"`
	Total4xxErrors int64 `json:"total4xxErrors"`
	Total400Errors int64 `json:"total400Errors"`
	Total404Errors int64 `json:"total404Errors"`
	Total422Errors int64 `json:"total422Errors"`
	SlowRequests   int64 `json:"slowRequests"`
}

func Snapshot() Counters {
	return Counters{
		TotalErrors:    TotalErrors.Load(),
		TotalWarnings:  TotalWarnings.Load(),
		Total5xxErrors: Total5xxErrors.Load(),
		Total4xxErrors: Total4xxErrors.Load(),
		Total400Errors: Total400Errors.Load(),
		Total404Errors: Total404Errors.Load(),
		Total422Errors: Total422Errors.Load(),
		SlowRequests:   SlowRequests.Load(),
	}
}
