// Package value models document field values as a discriminated union of
// text, number, boolean, and ordered lists, and documents as ordered field
// mappings. Field order is preserved through JSON round-trips.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is one field value: text, number, boolean, or an ordered list of
// values. The zero Value is empty text.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
	list []Value
}

// Text creates a text Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number creates a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List creates a list Value from the given elements.
func List(elems ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), elems...)}
}

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// Elems returns the elements of a list value, or nil for scalars.
func (v Value) Elems() []Value { return v.list }

// String returns the canonical textual representation used for doc-id
// derivation, tokenization of non-text fields, and facet keys.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// Equal reports strict, type-sensitive equality: values of different kinds
// are never equal, even when their textual forms coincide.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON emits the native JSON form of the value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// decodeValue reads one JSON value from the decoder, which must have
// UseNumber enabled.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case string:
		return Text(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parsing number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		if t != '[' {
			return Value{}, fmt.Errorf("unsupported field value: nested object")
		}
		elems := make([]Value, 0, 4)
		for dec.More() {
			elem, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, elem)
		}
		if _, err := dec.Token(); err != nil { // closing ']'
			return Value{}, err
		}
		return Value{kind: KindList, list: elems}, nil
	case nil:
		return Value{}, fmt.Errorf("unsupported field value: null")
	default:
		return Value{}, fmt.Errorf("unsupported field value type %T", tok)
	}
}

// Field is one named field of a document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered field mapping. Writing an existing field keeps its
// position; new fields append.
type Document struct {
	fields []Field
	byName map[string]int
}

// NewDocument creates an empty document.
func NewDocument() Document {
	return Document{byName: make(map[string]int)}
}

// Set writes a field, overwriting in place or appending a new field.
func (d *Document) Set(name string, v Value) {
	if d.byName == nil {
		d.byName = make(map[string]int)
	}
	if i, ok := d.byName[name]; ok {
		d.fields[i].Value = v
		return
	}
	d.byName[name] = len(d.fields)
	d.fields = append(d.fields, Field{Name: name, Value: v})
}

// Get returns the value of the named field.
func (d Document) Get(name string) (Value, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Value{}, false
	}
	return d.fields[i].Value, true
}

// Has reports whether the named field exists.
func (d Document) Has(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Fields returns the fields in insertion order. The returned slice must not
// be mutated.
func (d Document) Fields() []Field { return d.fields }

// Len returns the number of fields.
func (d Document) Len() int { return len(d.fields) }

// Clone returns an independent copy of the document.
func (d Document) Clone() Document {
	out := Document{
		fields: append([]Field(nil), d.fields...),
		byName: make(map[string]int, len(d.byName)),
	}
	for k, v := range d.byName {
		out.byName[k] = v
	}
	return out
}

// Merge returns a copy of d with every field of partial shallow-merged over
// it: existing fields are overwritten in place, new fields append.
func (d Document) Merge(partial Document) Document {
	out := d.Clone()
	for _, f := range partial.fields {
		out.Set(f.Name, f.Value)
	}
	return out
}

// Equal reports field-by-field equality including field order.
func (d Document) Equal(o Document) bool {
	if len(d.fields) != len(o.fields) {
		return false
	}
	for i := range d.fields {
		if d.fields[i].Name != o.fields[i].Name {
			return false
		}
		if !d.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}

// MarshalJSON emits the document as a JSON object with fields in insertion
// order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object")
	}
	doc := NewDocument()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key token %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		doc.Set(key, val)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	*d = doc
	return nil
}
