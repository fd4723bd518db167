package debugserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Common sensitive key patterns
var sensitivePatterns = []string{
	"TOKEN",
	"KEY",
	"SECRET",
	"PASSWORD",
	"PAT",
	"CREDENTIAL",
	"AUTH",
}

const maskedValue = "***"

// isSensitiveKey checks if an object key contains sensitive patterns
func isSensitiveKey(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(upperKey, pattern) {
			return true
		}
	}
	return false
}

// MaskSecrets returns a compact copy of raw where the value of every object
// member with a sensitive key, at any depth, is replaced by "***". Member
// order and number text are preserved.
func MaskSecrets(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := maskNext(dec, &buf); err != nil {
		return nil, fmt.Errorf("mask secrets: %w", err)
	}
	return buf.Bytes(), nil
}

func maskNext(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			buf.WriteByte('{')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				writeString(buf, key)
				buf.WriteByte(':')
				if isSensitiveKey(key) {
					if err := skipNext(dec); err != nil {
						return err
					}
					writeString(buf, maskedValue)
					continue
				}
				if err := maskNext(dec, buf); err != nil {
					return err
				}
			}
			buf.WriteByte('}')
		case '[':
			buf.WriteByte('[')
			for i := 0; dec.More(); i++ {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := maskNext(dec, buf); err != nil {
					return err
				}
			}
			buf.WriteByte(']')
		default:
			return fmt.Errorf("unexpected delimiter %q", t)
		}
		// closing delimiter
		_, err := dec.Token()
		return err
	case string:
		writeString(buf, t)
	case json.Number:
		buf.WriteString(t.String())
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	}
	return nil
}

// skipNext consumes one complete value from dec.
func skipNext(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
}

// maskSensitiveText masks sensitive values in text that could not be parsed
// as JSON. Everything after the separator following a sensitive pattern is
// dropped, once per line.
func maskSensitiveText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		upperLine := strings.ToUpper(line)
		for _, pattern := range sensitivePatterns {
			patternIdx := strings.Index(upperLine, pattern)
			if patternIdx >= 0 && patternIdx < len(line) {
				remainingLine := line[patternIdx:]
				if idx := strings.IndexAny(remainingLine, "=:"); idx >= 0 {
					actualIdx := patternIdx + idx
					lines[i] = line[:actualIdx+1] + " " + maskedValue
					break
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}
