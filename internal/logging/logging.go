// Package logging builds the application's hclog loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Name is the root logger name.
const Name = "huematch"

// Options configures the root logger.
type Options struct {
	// Level is one of trace, debug, info, warn, error or off.
	Level string

	// JSON switches to structured JSON lines.
	JSON bool

	// Output defaults to stderr.
	Output io.Writer
}

// ParseLevel converts a level name to an hclog level. Empty means info.
func ParseLevel(level string) (hclog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return hclog.Info, nil
	}
	parsed := hclog.LevelFromString(level)
	if parsed == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("invalid log level: %s (valid levels: trace, debug, info, warn, error, off)", level)
	}
	return parsed, nil
}

// New creates the root logger.
func New(opts Options) (hclog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       Name,
		Output:     output,
		Level:      level,
		JSONFormat: opts.JSON,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   Name,
		Output: io.Discard,
		Level:  hclog.Off,
	})
}
