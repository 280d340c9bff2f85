package result

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// member is one key/value pair of a JSON object, kept in document order
type member struct {
	key   string
	value json.RawMessage
}

type object []member

// decodeObject parses data as a JSON object, preserving key order. A repeated
// key keeps its first position and its last value.
func decodeObject(data []byte) (object, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}

	obj := object{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if i, seen := index[key]; seen {
			obj[i].value = value
			continue
		}
		index[key] = len(obj)
		obj = append(obj, member{key: key, value: value})
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}

func (o object) get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindNumber
	kindBool
	kindObject
	kindArray
)

func kindOf(v json.RawMessage) valueKind {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return kindNull
	}
	switch v[0] {
	case '"':
		return kindString
	case '{':
		return kindObject
	case '[':
		return kindArray
	case 't', 'f':
		return kindBool
	case 'n':
		return kindNull
	default:
		return kindNumber
	}
}

// scalarText returns the text of a string or number value. ok is false for
// every other type.
func scalarText(v json.RawMessage) (string, bool) {
	switch kindOf(v) {
	case kindString:
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case kindNumber:
		return string(bytes.TrimSpace(v)), true
	}
	return "", false
}

// displayValue renders any value: strings unquoted, objects and arrays as
// indented JSON, everything else as its literal text.
func displayValue(v json.RawMessage) string {
	switch kindOf(v) {
	case kindString:
		s, _ := scalarText(v)
		return s
	case kindObject, kindArray:
		var buf bytes.Buffer
		if err := json.Indent(&buf, v, "", "  "); err != nil {
			return string(v)
		}
		return buf.String()
	}
	return string(bytes.TrimSpace(v))
}

func label(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// slots extracts typed fields from an object and collects everything else
type slots struct {
	obj   object
	known map[string]bool
	unfit map[string]bool
}

func newSlots(obj object, known ...string) *slots {
	s := &slots{obj: obj, known: make(map[string]bool), unfit: make(map[string]bool)}
	for _, k := range known {
		s.known[k] = true
	}
	return s
}

// text returns the scalar text of key. A known key holding a value of
// another type is moved to the extra fields.
func (s *slots) text(key string) string {
	v, ok := s.obj.get(key)
	if !ok || kindOf(v) == kindNull {
		return ""
	}
	text, ok := scalarText(v)
	if !ok {
		s.unfit[key] = true
		return ""
	}
	return text
}

// first returns the text of the first key holding a non-empty scalar
func (s *slots) first(keys ...string) string {
	for _, k := range keys {
		if text := s.text(k); text != "" {
			return text
		}
	}
	return ""
}

func (s *slots) extra() []Field {
	var fields []Field
	for _, m := range s.obj {
		if s.known[m.key] && !s.unfit[m.key] {
			continue
		}
		fields = append(fields, Field{Key: m.key, Label: label(m.key), Value: displayValue(m.value)})
	}
	return fields
}
