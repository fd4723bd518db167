package debugserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Kind identifies which JSON value a Message holds
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Message is one JSON value read from a single input line. Member values of an
// object are kept as raw text so ids are echoed exactly as the client sent them.
type Message struct {
	raw     json.RawMessage
	kind    Kind
	members map[string]json.RawMessage
}

// InvalidUTF8Error reports input that is not UTF-8 text. encoding/json lets
// such bytes through inside strings, so it is checked up front.
type InvalidUTF8Error struct {
	Offset int64
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("invalid UTF-8 at byte offset %d", e.Offset)
}

func invalidUTF8Offset(data []byte) int64 {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return int64(i)
		}
		i += size
	}
	return -1
}

// ParseMessage parses data as exactly one JSON value.
func ParseMessage(data []byte) (*Message, error) {
	if !utf8.Valid(data) {
		return nil, &InvalidUTF8Error{Offset: invalidUTF8Offset(data)}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	msg := &Message{raw: raw, kind: kindOf(raw)}
	if msg.kind == KindObject {
		if err := json.Unmarshal(raw, &msg.members); err != nil {
			return nil, fmt.Errorf("decode object members: %w", err)
		}
	}
	return msg, nil
}

func kindOf(raw json.RawMessage) Kind {
	if len(raw) == 0 {
		return KindNull
	}
	switch raw[0] {
	case '{':
		return KindObject
	case '[':
		return KindArray
	case '"':
		return KindString
	case 't', 'f':
		return KindBool
	case 'n':
		return KindNull
	default:
		return KindNumber
	}
}

func (m *Message) Kind() Kind { return m.kind }

func (m *Message) IsObject() bool { return m.kind == KindObject }

// Raw returns the value's text as received.
func (m *Message) Raw() json.RawMessage { return m.raw }

// Has reports whether the message is an object with the given member.
func (m *Message) Has(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Lookup returns the raw text of an object member. It returns false for
// non-object values and for objects without the member.
func (m *Message) Lookup(key string) (json.RawMessage, bool) {
	if !m.IsObject() {
		return nil, false
	}
	v, ok := m.members[key]
	return v, ok
}

// ID returns the raw id member. A present id of null is returned as "null".
func (m *Message) ID() (json.RawMessage, bool) {
	return m.Lookup("id")
}

// IsRequest reports whether the message expects a reply.
func (m *Message) IsRequest() bool {
	return m.Has("id")
}

// Indent renders the value with one level of indent per nesting depth,
// keeping member order and number text unchanged.
func (m *Message) Indent(indent string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, m.raw, "", indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}
