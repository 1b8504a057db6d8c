package value

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"text", Text("hello"), "hello"},
		{"integer number", Number(42), "42"},
		{"float number", Number(3.5), "3.5"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"list", List(Text("a"), Number(1)), "[a, 1]"},
		{"empty list", List(), "[]"},
		{"zero value", Value{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueEqualStrictTyping(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same text", Text("x"), Text("x"), true},
		{"different text", Text("x"), Text("y"), false},
		{"same number", Number(7), Number(7), true},
		{"number vs text with same form", Number(7), Text("7"), false},
		{"bool vs text with same form", Bool(true), Text("true"), false},
		{"same list", List(Number(1), Number(2)), List(Number(1), Number(2)), true},
		{"list length mismatch", List(Number(1)), List(Number(1), Number(2)), false},
		{"list element kind mismatch", List(Number(1)), List(Text("1")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocumentFieldOrderRoundTrip(t *testing.T) {
	raw := `{"zeta":"last first","id":"1","count":3,"tags":["fiction","classic"],"in_print":true}`

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	wantOrder := []string{"zeta", "id", "count", "tags", "in_print"}
	fields := doc.Fields()
	if len(fields) != len(wantOrder) {
		t.Fatalf("expected %d fields, got %d", len(wantOrder), len(fields))
	}
	for i, name := range wantOrder {
		if fields[i].Name != name {
			t.Errorf("field %d: expected %q, got %q", i, name, fields[i].Name)
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round-trip changed document:\n  in:  %s\n  out: %s", raw, out)
	}
}

func TestDocumentUnmarshalRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"null field", `{"id":null}`},
		{"nested object", `{"id":"1","meta":{"a":1}}`},
		{"top-level array", `["not","an","object"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc Document
			if err := json.Unmarshal([]byte(tt.raw), &doc); err == nil {
				t.Errorf("expected error for %s", tt.raw)
			}
		})
	}
}

func TestDocumentSetOverwritesInPlace(t *testing.T) {
	doc := NewDocument()
	doc.Set("a", Text("1"))
	doc.Set("b", Text("2"))
	doc.Set("a", Text("updated"))

	fields := doc.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Name != "a" || fields[0].Value.String() != "updated" {
		t.Errorf("expected field a at position 0 with value %q, got %q=%q",
			"updated", fields[0].Name, fields[0].Value.String())
	}
}

func TestDocumentMerge(t *testing.T) {
	base := NewDocument()
	base.Set("id", Text("1"))
	base.Set("title", Text("old title"))
	base.Set("price", Number(10))

	partial := NewDocument()
	partial.Set("title", Text("new title"))
	partial.Set("stock", Number(5))

	merged := base.Merge(partial)

	if got, _ := merged.Get("title"); !got.Equal(Text("new title")) {
		t.Errorf("title = %q, want %q", got.String(), "new title")
	}
	if got, _ := merged.Get("price"); !got.Equal(Number(10)) {
		t.Errorf("price = %q, want 10", got.String())
	}
	fields := merged.Fields()
	if fields[len(fields)-1].Name != "stock" {
		t.Errorf("expected new field stock appended last, got %q", fields[len(fields)-1].Name)
	}

	// Merge must not mutate the receiver.
	if got, _ := base.Get("title"); !got.Equal(Text("old title")) {
		t.Errorf("merge mutated base: title = %q", got.String())
	}
	if base.Has("stock") {
		t.Error("merge mutated base: stock field added")
	}
}

func TestDocumentClone(t *testing.T) {
	doc := NewDocument()
	doc.Set("id", Text("1"))

	clone := doc.Clone()
	clone.Set("id", Text("2"))
	clone.Set("extra", Bool(true))

	if got, _ := doc.Get("id"); !got.Equal(Text("1")) {
		t.Errorf("clone mutation leaked into original: id = %q", got.String())
	}
	if doc.Has("extra") {
		t.Error("clone mutation leaked into original: extra field")
	}
}

func TestDocumentEqual(t *testing.T) {
	a := NewDocument()
	a.Set("x", Number(1))
	a.Set("y", Number(2))

	b := NewDocument()
	b.Set("y", Number(2))
	b.Set("x", Number(1))

	if a.Equal(b) {
		t.Error("documents with different field order compared equal")
	}

	c := NewDocument()
	c.Set("x", Number(1))
	c.Set("y", Number(2))
	if !a.Equal(c) {
		t.Error("identical documents compared unequal")
	}
}

func TestNumberPrecisionRoundTrip(t *testing.T) {
	raw := `{"price":19.99,"count":1000000}`
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), "19.99") {
		t.Errorf("lost float precision: %s", out)
	}
	if !strings.Contains(string(out), "1000000") {
		t.Errorf("integer rendered in exponent form: %s", out)
	}
}
