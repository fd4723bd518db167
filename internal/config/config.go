package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	DefaultLogLevel     = "info"
	DefaultIndentWidth  = 2
	DefaultMaxLineBytes = 10 * 1024 * 1024
	MinMaxLineBytes     = 64 * 1024
)

// Options holds the runtime settings of the debug server. They come from
// command-line flags only; the server reads no files or environment.
type Options struct {
	LogLevel     string
	NoColor      bool
	MaskSecrets  bool
	MaxLineBytes int
	IndentWidth  int
}

func Default() Options {
	return Options{
		LogLevel:     DefaultLogLevel,
		MaxLineBytes: DefaultMaxLineBytes,
		IndentWidth:  DefaultIndentWidth,
	}
}

// BindFlags registers the options on fs, using the current values as defaults.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.LogLevel, "log-level", "l", o.LogLevel, "Diagnostic log level (trace, debug, info, warn, error)")
	fs.BoolVar(&o.NoColor, "no-color", o.NoColor, "Disable colored diagnostics")
	fs.BoolVar(&o.MaskSecrets, "mask-secrets", o.MaskSecrets, "Mask values of token, key, secret and password fields in diagnostics")
	fs.IntVar(&o.MaxLineBytes, "max-line-bytes", o.MaxLineBytes, "Longest accepted input line in bytes")
	fs.IntVar(&o.IndentWidth, "indent", o.IndentWidth, "Spaces per level when pretty-printing parsed JSON")
}

func (o *Options) Validate() error {
	if _, err := o.Level(); err != nil {
		return err
	}
	if o.MaxLineBytes < MinMaxLineBytes {
		return fmt.Errorf("max-line-bytes must be at least %d, got %d", MinMaxLineBytes, o.MaxLineBytes)
	}
	if o.IndentWidth < 0 || o.IndentWidth > 8 {
		return fmt.Errorf("indent must be between 0 and 8, got %d", o.IndentWidth)
	}
	return nil
}

func (o *Options) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.TrimSpace(o.LogLevel))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", o.LogLevel, err)
	}
	return level, nil
}

// Indent returns the indent unit used for pretty-printing.
func (o *Options) Indent() string {
	return strings.Repeat(" ", o.IndentWidth)
}
