package upm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TrimBOM strips a leading UTF-8 byte-order mark.
func TrimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// Member is one key/value pair of a JSON object with its byte offsets.
// KeyStart is the offset of the key's opening quote; ValueStart and ValueEnd
// delimit the raw value (ValueEnd is exclusive).
type Member struct {
	Key        string
	KeyStart   int
	ValueStart int
	ValueEnd   int
}

// Raw returns the member's raw value bytes from doc.
func (m Member) Raw(doc []byte) []byte {
	return doc[m.ValueStart:m.ValueEnd]
}

// Object is an object-valued member located within a document.
// Start is the offset of '{' and End is one past the matching '}'.
type Object struct {
	Key      string
	KeyStart int
	Start    int
	End      int
	Entries  []Entry
}

// Entry is a string-valued member of an [Object], in document order.
type Entry struct {
	Key   string
	Value string
}

// Members returns the members of the top-level object in doc, in document
// order, and the offset of the object's closing brace.
func Members(doc []byte) ([]Member, int, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeParse, err, "read document")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, 0, errors.New(errors.ErrCodeParse, "document is not a JSON object")
	}

	var members []Member
	for dec.More() {
		keyStart := skip(doc, int(dec.InputOffset()), ",")
		tok, err := dec.Token()
		if err != nil {
			return nil, 0, errors.Wrap(errors.ErrCodeParse, err, "read key at offset %d", keyStart)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, 0, errors.New(errors.ErrCodeParse, "expected key at offset %d", keyStart)
		}
		valueStart := skip(doc, int(dec.InputOffset()), ":")

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, 0, errors.Wrap(errors.ErrCodeParse, err, "read value of %q", key)
		}
		members = append(members, Member{
			Key:        key,
			KeyStart:   keyStart,
			ValueStart: valueStart,
			ValueEnd:   int(dec.InputOffset()),
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeParse, err, "read end of object")
	}
	return members, int(dec.InputOffset()) - 1, nil
}

// LocateKey returns the top-level member named key. When the key occurs more
// than once the last occurrence wins, as with encoding/json.
func LocateKey(doc []byte, key string) (Member, bool, error) {
	members, _, err := Members(doc)
	if err != nil {
		return Member{}, false, err
	}
	return find(members, key)
}

// LocateObject returns the span and string entries of the top-level
// object-valued field named key. Found is false when the field is absent or
// null. Any other value that is not an object of strings is a parse error.
func LocateObject(doc []byte, key string) (*Object, bool, error) {
	m, ok, err := LocateKey(doc, key)
	if err != nil || !ok {
		return nil, false, err
	}

	raw := m.Raw(doc)
	if bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}
	inner, _, err := Members(raw)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeParse, err, "field %q", key)
	}

	obj := &Object{
		Key:      key,
		KeyStart: m.KeyStart,
		Start:    m.ValueStart,
		End:      m.ValueEnd,
		Entries:  make([]Entry, 0, len(inner)),
	}
	for _, im := range inner {
		var s string
		if err := json.Unmarshal(im.Raw(raw), &s); err != nil {
			return nil, false, errors.New(errors.ErrCodeParse,
				"field %q: value of %q: expected string, found %s", key, im.Key, kindOf(im.Raw(raw)))
		}
		obj.Entries = append(obj.Entries, Entry{Key: im.Key, Value: s})
	}
	return obj, true, nil
}

// StringField reads a top-level string field. Absent or non-string fields
// yield "" and false.
func StringField(doc []byte, key string) (string, bool) {
	m, ok, err := LocateKey(doc, key)
	if err != nil || !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Raw(doc), &s); err != nil {
		return "", false
	}
	return s, true
}

func find(members []Member, key string) (Member, bool, error) {
	for i := len(members) - 1; i >= 0; i-- {
		if members[i].Key == key {
			return members[i], true, nil
		}
	}
	return Member{}, false, nil
}

// skip advances past JSON whitespace and any of the given separator bytes.
func skip(doc []byte, i int, seps string) int {
	for i < len(doc) {
		switch c := doc[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case bytes.IndexByte([]byte(seps), c) >= 0:
			i++
		default:
			return i
		}
	}
	return i
}

func kindOf(raw []byte) string {
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return fmt.Sprintf("number %s", raw)
	}
}
