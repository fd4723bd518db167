package debugserver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Formatter renders entries as "[LEVEL] message key=value ...". Messages may
// span several lines, which keeps pretty-printed JSON readable.
type Formatter struct {
	Colors bool
}

var levelColors = map[logrus.Level][]color.Attribute{
	logrus.TraceLevel: {color.FgHiBlack},
	logrus.DebugLevel: {color.FgCyan},
	logrus.InfoLevel:  {color.FgGreen},
	logrus.WarnLevel:  {color.FgYellow},
	logrus.ErrorLevel: {color.FgRed},
	logrus.FatalLevel: {color.FgRed, color.Bold},
	logrus.PanicLevel: {color.FgRed, color.Bold},
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	tag := "[" + strings.ToUpper(entry.Level.String()) + "]"
	if attrs, ok := levelColors[entry.Level]; ok && f.Colors {
		c := color.New(attrs...)
		c.EnableColor()
		tag = c.Sprint(tag)
	}
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fieldValue(entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func fieldValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// NewLogger returns a logger writing to w at the given level.
func NewLogger(w io.Writer, level logrus.Level, colors bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&Formatter{Colors: colors})
	return logger
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
