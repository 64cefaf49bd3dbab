package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	appName = "born-export"

	textFormat = "text"
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var legalLogFormats = []string{textFormat, jsonFormat}

// GlobalOptions are shared by every command.
type GlobalOptions struct {
	LogLevel  string
	LogFormat string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level. One of: (debug, info, warn, error). Overrides the config file.")
	fs.StringVar(&o.LogFormat, "log-format", o.LogFormat, fmt.Sprintf("Log format. One of: (%s). Overrides the config file.", strings.Join(legalLogFormats, ", ")))
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.LogFormat != "" && !slices.Contains(legalLogFormats, o.LogFormat) {
		return fmt.Errorf("log-format must be one of (%s)", strings.Join(legalLogFormats, ", "))
	}
	if o.LogLevel != "" {
		if _, err := parseLevel(o.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Logger builds the logger for cmd. Flag values win over the given defaults.
func (o *GlobalOptions) Logger(cmd *cobra.Command, level, format string) (*slog.Logger, error) {
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	if o.LogFormat != "" {
		format = o.LogFormat
	}
	return newLogger(cmd.ErrOrStderr(), level, format)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl := slog.LevelInfo
	if level != "" {
		var err error
		if lvl, err = parseLevel(level); err != nil {
			return nil, err
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
