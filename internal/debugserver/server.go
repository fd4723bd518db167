package debugserver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const initialBufferSize = 64 * 1024

type Config struct {
	Logger       *logrus.Logger
	MaskSecrets  bool
	MaxLineBytes int
	Indent       string
}

// Stats counts what a Run saw on its input.
type Stats struct {
	Lines         int
	Blank         int
	Requests      int
	Notifications int
	ParseErrors   int
}

func (s Stats) fields() logrus.Fields {
	return logrus.Fields{
		"lines":         s.Lines,
		"blank":         s.Blank,
		"requests":      s.Requests,
		"notifications": s.Notifications,
		"parse_errors":  s.ParseErrors,
	}
}

// Server reads newline-delimited JSON-RPC messages, logs them and answers
// every request with the canned initialize result.
type Server struct {
	in  *bufio.Scanner
	out *bufio.Writer
	log *logrus.Logger

	maskSecrets bool
	indent      string
}

func NewServer(in io.Reader, out io.Writer, cfg Config) *Server {
	maxLine := cfg.MaxLineBytes
	if maxLine <= 0 {
		maxLine = bufio.MaxScanTokenSize
	}
	initial := initialBufferSize
	if initial > maxLine {
		initial = maxLine
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, initial), maxLine)
	scanner.Split(scanLines)

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Server{
		in:          scanner,
		out:         bufio.NewWriter(out),
		log:         logger,
		maskSecrets: cfg.MaskSecrets,
		indent:      cfg.Indent,
	}
}

// Run processes input until end-of-stream. It returns an error only for a
// stream fault: a failed read, an over-long line or a failed reply write.
func (s *Server) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	s.log.WithFields(logrus.Fields{
		"session":         uuid.NewString(),
		"protocolVersion": ProtocolVersion,
	}).Info("MCP debug server starting")

	lineNum := 0
	for s.in.Scan() {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		lineNum++
		stats.Lines++
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			stats.Blank++
			continue
		}

		if err := s.handleLine(lineNum, line, &stats); err != nil {
			s.log.WithField("line", lineNum).Errorf("Error: %v", err)
			return stats, err
		}
	}

	if err := s.in.Err(); err != nil {
		err = fmt.Errorf("read input after line %d: %w", lineNum, err)
		s.log.Errorf("Error: %v", err)
		return stats, err
	}

	s.log.WithFields(stats.fields()).Info("Input closed")
	return stats, nil
}

// scanLines splits on "\n", "\r\n" and a lone "\r", the line endings a
// text-mode reader accepts.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// need one more byte to tell "\r\n" from "\r"
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *Server) handleLine(lineNum int, line string, stats *Stats) error {
	msg, parseErr := ParseMessage([]byte(line))

	s.log.WithFields(logrus.Fields{"line": lineNum, "bytes": len(line)}).Debug("Read line")
	s.log.Infof("Line %d: %s", lineNum, s.displayLine(line, msg))

	if parseErr != nil {
		stats.ParseErrors++
		s.logParseError(lineNum, line, parseErr)
		return nil
	}

	s.log.WithField("kind", msg.Kind()).Infof("Parsed JSON: %s", s.render(msg))

	if !msg.IsRequest() {
		stats.Notifications++
		s.log.Info("Notification detected, no response needed")
		return nil
	}

	stats.Requests++
	s.log.Info("Request detected, sending response")
	id, _ := msg.ID()
	return s.writeResponse(NewResponse(id))
}

func (s *Server) logParseError(lineNum int, line string, err error) {
	diag := DiagnoseParseError(line, err)

	entry := s.log.WithField("line", lineNum)
	if diag.Offset >= 0 {
		entry = entry.WithField("offset", diag.Offset)
	}

	text := fmt.Sprintf("JSON Parse Error: %v", err)
	if hints := diag.FormatSuggestions(); hints != "" {
		text += "\nPossible causes:\n" + hints
	}
	entry.Warn(text)
}

// displayLine is the raw line as logged, masked when requested. Invalid
// UTF-8 is shown as U+FFFD.
func (s *Server) displayLine(line string, msg *Message) string {
	line = strings.ToValidUTF8(line, "\uFFFD")
	if !s.maskSecrets {
		return line
	}
	if msg != nil {
		if masked, err := MaskSecrets(msg.Raw()); err == nil {
			return string(masked)
		}
	}
	return maskSensitiveText(line)
}

func (s *Server) render(msg *Message) string {
	raw := msg.Raw()
	if s.maskSecrets {
		masked, err := MaskSecrets(raw)
		if err != nil {
			return maskSensitiveText(string(raw))
		}
		raw = masked
	}
	pretty, err := (&Message{raw: raw}).Indent(s.indent)
	if err != nil {
		return string(raw)
	}
	return pretty
}

func (s *Server) writeResponse(resp Response) error {
	payload, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if _, err := s.out.Write(payload); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := s.out.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
