// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how much to log.
type Options struct {
	Level string
	// File, when set, receives JSON lines rotated by size.
	File string
	// Pretty writes human readable console output instead of JSON.
	Pretty bool
	// Console overrides os.Stderr, mainly for tests.
	Console io.Writer
}

// Setup installs the global logger. The returned closer flushes and closes
// the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = l
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
