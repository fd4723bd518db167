package debugserver

import (
	"bytes"
	"encoding/json"
)

const (
	JSONRPCVersion  = "2.0"
	ProtocolVersion = "2025-06-18"
	ServerName      = "debug-server"
	ServerVersion   = "1.0.0"
)

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability is advertised empty; its presence is all a client checks.
type ToolsCapability struct{}

type Capabilities struct {
	Tools ToolsCapability `json:"tools"`
}

type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// CannedResult is sent for every request, whatever its method.
var CannedResult = InitializeResult{
	ProtocolVersion: ProtocolVersion,
	Capabilities:    Capabilities{Tools: ToolsCapability{}},
	ServerInfo: ServerInfo{
		Name:    ServerName,
		Version: ServerVersion,
	},
}

type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  InitializeResult `json:"result"`
}

// NewResponse builds the canned reply for a request id. An empty id is sent as null.
func NewResponse(id json.RawMessage) Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  CannedResult,
	}
}

// Encode renders the response as one line with a space after each ':' and
// ',' separator. The id is written as received, without HTML escaping.
func (r Response) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return spaceSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// spaceSeparators adds a space after every ':' and ',' of compact JSON that
// sits outside a string literal.
func spaceSeparators(compact []byte) []byte {
	out := make([]byte, 0, len(compact)+len(compact)/4)
	inString, escaped := false, false
	for _, c := range compact {
		out = append(out, c)
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == ':' || c == ','):
			out = append(out, ' ')
		}
	}
	return out
}
