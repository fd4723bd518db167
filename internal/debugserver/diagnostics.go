package debugserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ParseDiagnostic describes why a line could not be parsed as JSON
type ParseDiagnostic struct {
	Line        string
	Error       error
	Offset      int64
	Suggestions []string
}

var (
	singleQuotePattern = regexp.MustCompile(`[{,\[:]\s*'|^'`)
	nonFinitePattern   = regexp.MustCompile(`(?:^|[\s:,\[])-?(?:NaN|Infinity)\b`)
)

// DiagnoseParseError inspects a malformed line and collects hints about the
// most likely cause.
func DiagnoseParseError(line string, err error) *ParseDiagnostic {
	diag := &ParseDiagnostic{
		Line:        line,
		Error:       err,
		Offset:      -1,
		Suggestions: []string{},
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		diag.Offset = syntaxErr.Offset
	}

	var utf8Err *InvalidUTF8Error
	if errors.As(err, &utf8Err) {
		diag.Offset = utf8Err.Offset
		diag.Suggestions = append(diag.Suggestions, "Line is not valid UTF-8; check the client's output encoding")
		return diag
	}

	if strings.HasPrefix(line, "\ufeff") {
		diag.Suggestions = append(diag.Suggestions, "Line starts with a UTF-8 byte order mark; strip the BOM before sending")
	}

	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "content-length:") || strings.HasPrefix(lower, "content-type:") {
		diag.Suggestions = append(diag.Suggestions, "Line looks like a framing header; only newline-delimited JSON is supported, not Content-Length framing")
		return diag
	}

	if hasTrailingData(line) {
		diag.Suggestions = append(diag.Suggestions, "Line holds more than one JSON value; send exactly one message per line")
	}

	if strings.Contains(err.Error(), "unexpected end of JSON input") {
		diag.Suggestions = append(diag.Suggestions, "Message ends early; it may have been split across lines or contain a raw newline")
	}

	if singleQuotePattern.MatchString(line) {
		diag.Suggestions = append(diag.Suggestions, "Single quotes are not valid JSON; use double quotes for keys and strings")
	}

	if nonFinitePattern.MatchString(line) {
		diag.Suggestions = append(diag.Suggestions, "NaN and Infinity are not valid JSON numbers")
	}

	return diag
}

// hasTrailingData reports whether line starts with a complete JSON value
// followed by something other than whitespace.
func hasTrailingData(line string) bool {
	dec := json.NewDecoder(strings.NewReader(line))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return false
	}
	rest := bytes.TrimSpace([]byte(line)[dec.InputOffset():])
	return len(rest) > 0
}

// FormatSuggestions renders the hints as a numbered list, one per line.
func (d *ParseDiagnostic) FormatSuggestions() string {
	if len(d.Suggestions) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, suggestion := range d.Suggestions {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "  %d. %s", i+1, suggestion)
	}
	return sb.String()
}
