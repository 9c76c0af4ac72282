// Package jsondoc provides Document, an immutable JSON value with no fixed
// schema. Object keys keep the order in which they appeared in the source.
//
// Field access is explicit and fallible: every accessor reports whether the
// value had the expected shape instead of panicking.
package jsondoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the JSON type held by a Document.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	List
	Map
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	case Map:
		return "map"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Document is a parsed JSON value. The zero value is JSON null.
type Document struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	items  []Document
	fields *orderedmap.OrderedMap[string, Document]
}

// Parse decodes exactly one JSON value from data.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	doc, err := decodeNext(dec)
	if err != nil {
		return Document{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Document{}, errors.New("unexpected data after top-level value")
	}
	return doc, nil
}

// ParseFirst decodes the first JSON value in data and ignores the rest. The
// value may span several lines.
func ParseFirst(data []byte) (Document, error) {
	return decodeNext(json.NewDecoder(bytes.NewReader(data)))
}

func decodeNext(dec *json.Decoder) (Document, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Document{}, err
	}
	return fromRaw(raw)
}

// fromRaw builds a Document from one syntactically valid JSON value.
func fromRaw(raw []byte) (Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Document{}, io.ErrUnexpectedEOF
	}

	switch raw[0] {
	case 'n':
		return Document{}, nil
	case 't', 'f':
		doc := Document{kind: Bool}
		err := json.Unmarshal(raw, &doc.b)
		return doc, err
	case '"':
		doc := Document{kind: String}
		err := json.Unmarshal(raw, &doc.str)
		return doc, err
	case '[':
		doc := Document{kind: List}
		if err := json.Unmarshal(raw, &doc.items); err != nil {
			return Document{}, err
		}
		if doc.items == nil {
			doc.items = []Document{}
		}
		return doc, nil
	case '{':
		// Duplicate keys: last value wins, first position is kept.
		fields := orderedmap.New[string, Document]()
		if err := json.Unmarshal(raw, fields); err != nil {
			return Document{}, err
		}
		return Document{kind: Map, fields: fields}, nil
	}

	doc := Document{kind: Number}
	if err := json.Unmarshal(raw, &doc.num); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// pairs returns the map fields in source order.
func (d Document) pairs() []*orderedmap.Pair[string, Document] {
	if d.kind != Map || d.fields == nil {
		return nil
	}
	out := make([]*orderedmap.Pair[string, Document], 0, d.fields.Len())
	for p := d.fields.Oldest(); p != nil; p = p.Next() {
		out = append(out, p)
	}
	return out
}

// Kind returns the JSON type of d.
func (d Document) Kind() Kind { return d.kind }

// IsNull reports whether d is JSON null.
func (d Document) IsNull() bool { return d.kind == Null }

// Len returns the number of list items or map fields, and 0 otherwise.
func (d Document) Len() int {
	switch d.kind {
	case List:
		return len(d.items)
	case Map:
		if d.fields == nil {
			return 0
		}
		return d.fields.Len()
	}
	return 0
}

// Field returns the value stored under key when d is a map.
func (d Document) Field(key string) (Document, bool) {
	if d.kind != Map || d.fields == nil {
		return Document{}, false
	}
	return d.fields.Get(key)
}

// Path follows a chain of map keys.
func (d Document) Path(keys ...string) (Document, bool) {
	cur := d
	for _, k := range keys {
		next, ok := cur.Field(k)
		if !ok {
			return Document{}, false
		}
		cur = next
	}
	return cur, true
}

// Keys returns the map keys in source order.
func (d Document) Keys() []string {
	if d.kind != Map {
		return nil
	}
	out := []string{}
	for _, p := range d.pairs() {
		out = append(out, p.Key)
	}
	return out
}

// Index returns the i-th list item.
func (d Document) Index(i int) (Document, bool) {
	if d.kind != List || i < 0 || i >= len(d.items) {
		return Document{}, false
	}
	return d.items[i], true
}

// Items returns the list items.
func (d Document) Items() []Document {
	if d.kind != List {
		return nil
	}
	out := make([]Document, len(d.items))
	copy(out, d.items)
	return out
}

func (d Document) AsString() (string, bool) {
	return d.str, d.kind == String
}

func (d Document) AsBool() (bool, bool) {
	return d.b, d.kind == Bool
}

// AsInt returns the value as an int64. Numbers with a fractional part or
// out of range fail.
func (d Document) AsInt() (int64, bool) {
	if d.kind != Number {
		return 0, false
	}
	n, err := d.num.Int64()
	return n, err == nil
}

func (d Document) AsFloat() (float64, bool) {
	if d.kind != Number {
		return 0, false
	}
	f, err := d.num.Float64()
	return f, err == nil
}

// StringField is shorthand for a map field holding a string.
func (d Document) StringField(key string) (string, bool) {
	v, ok := d.Field(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// IntField is shorthand for a map field holding an integer. A string made of
// digits is accepted too, since prpc encodes int64 values as strings.
func (d Document) IntField(key string) (int64, bool) {
	v, ok := d.Field(key)
	if !ok {
		return 0, false
	}
	if s, isString := v.AsString(); isString {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	return v.AsInt()
}

// Interface converts d into the generic encoding/json representation
// (map[string]interface{}, []interface{}, json.Number, ...).
func (d Document) Interface() interface{} {
	switch d.kind {
	case Bool:
		return d.b
	case Number:
		return d.num
	case String:
		return d.str
	case List:
		out := make([]interface{}, len(d.items))
		for i, item := range d.items {
			out[i] = item.Interface()
		}
		return out
	case Map:
		out := make(map[string]interface{}, d.Len())
		for _, p := range d.pairs() {
			out[p.Key] = p.Value.Interface()
		}
		return out
	}
	return nil
}

// Equal reports whether d and other hold the same JSON value. Map key
// order is ignored; numbers compare by their numeric value.
func (d Document) Equal(other Document) bool {
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case Null:
		return true
	case Bool:
		return d.b == other.b
	case Number:
		if d.num == other.num {
			return true
		}
		a, errA := d.num.Float64()
		b, errB := other.num.Float64()
		return errA == nil && errB == nil && a == b
	case String:
		return d.str == other.str
	case List:
		if len(d.items) != len(other.items) {
			return false
		}
		for i := range d.items {
			if !d.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case Map:
		if d.Len() != other.Len() {
			return false
		}
		for _, p := range d.pairs() {
			ov, ok := other.Field(p.Key)
			if !ok || !p.Value.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes d, keeping map keys in source order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d Document) encode(buf *bytes.Buffer) error {
	switch d.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(d.b))
	case Number:
		buf.WriteString(d.num.String())
	case String:
		b, err := json.Marshal(d.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case List:
		buf.WriteByte('[')
		for i, item := range d.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, p := range d.pairs() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(p.Key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := p.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot encode %v", d.kind)
	}
	return nil
}

// UnmarshalJSON lets Document be used as a field in decoded structs.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// String returns the compact JSON encoding of d.
func (d Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%v: %v>", d.kind, err)
	}
	return string(b)
}
