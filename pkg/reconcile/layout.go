package reconcile

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/matzehuels/pkgwarden/pkg/upm"
)

const defaultIndent = "  "

// layout is the whitespace style of a manifest.
type layout struct {
	newline string
	member  string // indentation of top-level fields
	entry   string // indentation of dependency entries
}

func detectLayout(doc []byte, members []upm.Member, block *upm.Object) layout {
	l := layout{newline: "\n", member: defaultIndent}
	if bytes.Contains(doc, []byte("\r\n")) {
		l.newline = "\r\n"
	}
	if len(members) > 0 {
		if ind, ok := indentBefore(doc, members[0].KeyStart); ok {
			l.member = ind
		}
	}

	unit := l.member
	if unit == "" {
		unit = defaultIndent
	}
	l.entry = l.member + unit

	if block != nil && len(block.Entries) > 0 {
		raw := doc[block.Start:block.End]
		if inner, _, err := upm.Members(raw); err == nil && len(inner) > 0 {
			if ind, ok := indentBefore(raw, inner[0].KeyStart); ok && ind != "" {
				l.entry = ind
			}
		}
	}
	return l
}

// indentBefore returns the run of spaces and tabs between the start of the
// line and offset. ok is false when offset is not the first token on its line.
func indentBefore(doc []byte, offset int) (string, bool) {
	i := offset
	for i > 0 && (doc[i-1] == ' ' || doc[i-1] == '\t') {
		i--
	}
	if i > 0 && doc[i-1] != '\n' {
		return "", false
	}
	return string(doc[i:offset]), true
}

// renderBlock serializes deps as a JSON object with byte-wise sorted keys.
func renderBlock(deps map[string]string, l layout) []byte {
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.newline)
		b.WriteString(l.entry)
		b.Write(quote(k))
		b.WriteString(": ")
		b.Write(quote(deps[k]))
	}
	if len(keys) > 0 {
		b.WriteString(l.newline)
		b.WriteString(l.member)
	}
	b.WriteByte('}')
	return b.Bytes()
}

// insertBlock adds a new "dependencies" member. It goes before the anchor
// field when present, else after the last member, else into the empty object.
func insertBlock(doc []byte, members []upm.Member, closing int, block []byte, anchor string, l layout) []byte {
	field := append(quote(upm.DependenciesField), ": "...)
	field = append(field, block...)

	if anchor != "" {
		if m, ok := lastMember(members, anchor); ok {
			ins := append(field, ',')
			ins = append(ins, l.newline...)
			ins = append(ins, l.member...)
			return splice(doc, m.KeyStart, m.KeyStart, ins)
		}
	}

	if len(members) > 0 {
		last := members[len(members)-1]
		ins := []byte("," + l.newline + l.member)
		ins = append(ins, field...)
		return splice(doc, last.ValueEnd, last.ValueEnd, ins)
	}

	// Empty object: replace its interior.
	open := bytes.IndexByte(doc, '{')
	ins := []byte(l.newline + l.member)
	ins = append(ins, field...)
	ins = append(ins, l.newline...)
	return splice(doc, open+1, closing, ins)
}

func lastMember(members []upm.Member, key string) (upm.Member, bool) {
	for i := len(members) - 1; i >= 0; i-- {
		if members[i].Key == key {
			return members[i], true
		}
	}
	return upm.Member{}, false
}

// splice returns doc with doc[start:end] replaced by repl.
func splice(doc []byte, start, end int, repl []byte) []byte {
	out := make([]byte, 0, len(doc)-(end-start)+len(repl))
	out = append(out, doc[:start]...)
	out = append(out, repl...)
	return append(out, doc[end:]...)
}

func quote(s string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(b.Bytes(), "\n")
}

func jsonValid(doc []byte) bool {
	return json.Valid(doc)
}
