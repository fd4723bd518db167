package debugserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(input string, maskSecrets bool) (*Server, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	logger := NewLogger(&stderr, logrus.InfoLevel, false)
	server := NewServer(strings.NewReader(input), &stdout, Config{
		Logger:       logger,
		MaskSecrets:  maskSecrets,
		MaxLineBytes: 1024 * 1024,
		Indent:       "  ",
	})
	return server, &stdout, &stderr
}

func cannedReply(id string) string {
	return `{"jsonrpc": "2.0", "id": ` + id + `, "result": ` + cannedResultJSON + "}\n"
}

func TestServerRun(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		stdout     string
		logContain []string
		logOmit    []string
	}{
		{
			name:       "initialize request",
			input:      `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n",
			stdout:     cannedReply("1"),
			logContain: []string{"Line 1: {\"jsonrpc\"", "Parsed JSON: {\n  \"jsonrpc\": \"2.0\",", "Request detected, sending response"},
		},
		{
			name:       "notification",
			input:      `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n",
			stdout:     "",
			logContain: []string{"Notification detected, no response needed"},
			logOmit:    []string{"Request detected"},
		},
		{
			name:       "invalid json",
			input:      "not json at all\n",
			stdout:     "",
			logContain: []string{"Line 1: not json at all", "JSON Parse Error"},
			logOmit:    []string{"Parsed JSON"},
		},
		{
			name:    "empty line",
			input:   "\n",
			stdout:  "",
			logOmit: []string{"Line 1", "Parsed JSON", "JSON Parse Error"},
		},
		{
			name:       "null id",
			input:      `{"id":null,"foo":"bar"}` + "\n",
			stdout:     cannedReply("null"),
			logContain: []string{"Request detected"},
		},
		{
			name:       "string id keeps its type",
			input:      `{"id":"1"}` + "\n",
			stdout:     cannedReply(`"1"`),
			logContain: []string{"Request detected"},
		},
		{
			name:       "non-object values are notifications",
			input:      "[{\"id\":1}]\n42\n\"id\"\nnull\n",
			stdout:     "",
			logContain: []string{"Line 4: null"},
			logOmit:    []string{"Request detected"},
		},
		{
			name:    "whitespace only lines",
			input:   "   \n\t\r\n",
			stdout:  "",
			logOmit: []string{"Parsed JSON", "Line 1", "Line 2"},
		},
		{
			name:       "invalid utf-8 is a malformed line",
			input:      "{\"id\":\"\xff\"}\n",
			stdout:     "",
			logContain: []string{"Line 1: {\"id\":\"\uFFFD\"}", "JSON Parse Error: invalid UTF-8 at byte offset 7", "not valid UTF-8"},
			logOmit:    []string{"Parsed JSON", "Request detected", "\xff"},
		},
		{
			name:       "multibyte utf-8 is accepted",
			input:      `{"id":"café"}` + "\n",
			stdout:     cannedReply("\"caf\u00e9\""),
			logContain: []string{"Request detected"},
		},
		{
			name:       "no trailing newline",
			input:      `{"id":3}`,
			stdout:     cannedReply("3"),
			logContain: []string{"Line 1: {\"id\":3}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, stdout, stderr := newTestServer(tt.input, false)

			_, err := server.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.stdout, stdout.String())
			logs := stderr.String()
			assert.Contains(t, logs, "MCP debug server starting")
			for _, want := range tt.logContain {
				assert.Contains(t, logs, want)
			}
			for _, unwanted := range tt.logOmit {
				assert.NotContains(t, logs, unwanted)
			}
		})
	}
}

func TestServerRunSequence(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`garbage`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":"three","method":"tools/call","params":{"name":"x"}}`,
	}, "\n") + "\n"

	server, stdout, stderr := newTestServer(input, false)
	stats, err := server.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Lines: 6, Blank: 1, Requests: 3, Notifications: 1, ParseErrors: 1}, stats)

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	var results []string
	for i, line := range lines {
		var resp struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Result  json.RawMessage `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "reply %d", i)
		assert.Equal(t, "2.0", resp.JSONRPC)
		results = append(results, string(resp.Result))
	}
	assert.Equal(t, cannedReply("1"), lines[0]+"\n")
	assert.Equal(t, cannedReply("2"), lines[1]+"\n")
	assert.Equal(t, cannedReply(`"three"`), lines[2]+"\n")
	for _, result := range results {
		assert.Equal(t, cannedResultJSON, result)
	}

	logs := stderr.String()
	assert.Contains(t, logs, "Line 3: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/initialized\"}")
	assert.Contains(t, logs, "Line 4: garbage")
	assert.Contains(t, logs, "Line 6: ")
	assert.Contains(t, logs, "requests=3")
	assert.Contains(t, logs, "parse_errors=1")
}

func TestServerRunLineTooLong(t *testing.T) {
	var stdout, stderr bytes.Buffer
	input := `{"id":1}` + "\n" + strings.Repeat("x", 100) + "\n" + `{"id":2}` + "\n"
	server := NewServer(strings.NewReader(input), &stdout, Config{
		Logger:       NewLogger(&stderr, logrus.InfoLevel, false),
		MaxLineBytes: 16,
		Indent:       "  ",
	})

	stats, err := server.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bufio.ErrTooLong))
	assert.Equal(t, 1, stats.Requests)
	assert.Equal(t, cannedReply("1"), stdout.String())
	assert.Contains(t, stderr.String(), "[ERROR]")
}

var errBrokenPipe = errors.New("broken pipe")

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errBrokenPipe }

func TestServerRunWriteFailure(t *testing.T) {
	var stderr bytes.Buffer
	input := `{"id":1}` + "\n" + `{"id":2}` + "\n"
	server := NewServer(strings.NewReader(input), failingWriter{}, Config{
		Logger: NewLogger(&stderr, logrus.InfoLevel, false),
		Indent: "  ",
	})

	stats, err := server.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBrokenPipe))
	assert.Equal(t, 1, stats.Requests)
	assert.Contains(t, stderr.String(), "flush response")
	assert.NotContains(t, stderr.String(), "Line 2")
}

func TestServerRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server, stdout, _ := newTestServer(`{"id":1}`+"\n", false)
	_, err := server.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stdout.String())
}

func TestServerRunMaskSecrets(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":9,"method":"initialize","params":{"env":{"GITHUB_TOKEN":"ghp_secret"}}}` + "\n" +
		"api_key=hunter2 {\n"

	server, stdout, stderr := newTestServer(input, true)
	_, err := server.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cannedReply("9"), stdout.String())

	logs := stderr.String()
	assert.NotContains(t, logs, "ghp_secret")
	assert.NotContains(t, logs, "hunter2")
	assert.Contains(t, logs, `"GITHUB_TOKEN": "***"`)
	assert.Contains(t, logs, `"GITHUB_TOKEN":"***"`)
}

func TestServerRunLogsParseHints(t *testing.T) {
	server, stdout, stderr := newTestServer("Content-Length: 52\n", false)
	stats, err := server.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, stdout.String())
	assert.Equal(t, 1, stats.ParseErrors)
	logs := stderr.String()
	assert.Contains(t, logs, "[WARNING] JSON Parse Error")
	assert.Contains(t, logs, "Possible causes:")
	assert.Contains(t, logs, "Content-Length framing")
	assert.Contains(t, logs, "offset=")
}

func TestServerRunCarriageReturns(t *testing.T) {
	input := `{"id":1}` + "\r" + `{"id":2}` + "\r\n" + `{"method":"x"}` + "\n" + `{"id":3}` + "\r"

	server, stdout, stderr := newTestServer(input, false)
	stats, err := server.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Lines: 4, Requests: 3, Notifications: 1}, stats)
	assert.Equal(t, cannedReply("1")+cannedReply("2")+cannedReply("3"), stdout.String())
	assert.Contains(t, stderr.String(), "Line 4: {\"id\":3}")
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lines []string
	}{
		{name: "newline", input: "a\nb\n", lines: []string{"a", "b"}},
		{name: "crlf", input: "a\r\nb\r\n", lines: []string{"a", "b"}},
		{name: "lone cr", input: "a\rb\r", lines: []string{"a", "b"}},
		{name: "mixed", input: "a\r\rb\nc", lines: []string{"a", "", "b", "c"}},
		{name: "blank lines", input: "\n\r\n", lines: []string{"", ""}},
		{name: "no terminator", input: "abc", lines: []string{"abc"}},
		{name: "empty", input: "", lines: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(scanLines)

			var lines []string
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestScanLinesCRAtBufferEnd(t *testing.T) {
	// one byte per read forces the "\r" to arrive without its "\n"
	scanner := bufio.NewScanner(iotest.OneByteReader(strings.NewReader("a\r\nb")))
	scanner.Split(scanLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"a", "b"}, lines)
}
