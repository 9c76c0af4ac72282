package jsondoc

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, s string) Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", s, err)
	}
	return doc
}

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{input: `null`, want: Null},
		{input: `true`, want: Bool},
		{input: `12`, want: Number},
		{input: `"x"`, want: String},
		{input: `[1, 2]`, want: List},
		{input: `{"a": 1}`, want: Map},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := mustParse(t, tt.input).Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ``},
		{name: "truncated object", input: `{"a": 1`},
		{name: "trailing data", input: `{} {}`},
		{name: "jsonp wrapper", input: `ADD_RESULTS({});`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.input)); err == nil {
				t.Errorf("Parse(%q) error = nil, want error", tt.input)
			}
		})
	}
}

func TestDocument_KeyOrderPreserved(t *testing.T) {
	doc := mustParse(t, `{"zeta": 1, "alpha": {"b": 2, "a": 3}, "mid": [true, null]}`)

	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, doc.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	want := `{"zeta":1,"alpha":{"b":2,"a":3},"mid":[true,null]}`
	if got := doc.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestDocument_Accessors(t *testing.T) {
	doc := mustParse(t, `{
		"build_number": 42,
		"size": "8472164",
		"ratio": 0.5,
		"interrupted": false,
		"builder_name": "Linux Tests",
		"tests": {"fast": {"a.html": {"actual": "PASS"}}},
		"list": ["x", "y"]
	}`)

	if n, ok := doc.IntField("build_number"); !ok || n != 42 {
		t.Errorf("IntField(build_number) = %d, %v; want 42, true", n, ok)
	}
	if n, ok := doc.IntField("size"); !ok || n != 8472164 {
		t.Errorf("IntField(size) = %d, %v; want 8472164, true", n, ok)
	}
	if _, ok := doc.IntField("ratio"); ok {
		t.Error("IntField(ratio) ok = true, want false for fractional number")
	}
	if b, ok := doc.Field("interrupted"); !ok {
		t.Error("Field(interrupted) missing")
	} else if v, isBool := b.AsBool(); !isBool || v {
		t.Errorf("AsBool() = %v, %v; want false, true", v, isBool)
	}
	if s, ok := doc.StringField("builder_name"); !ok || s != "Linux Tests" {
		t.Errorf("StringField(builder_name) = %q, %v", s, ok)
	}
	if _, ok := doc.StringField("build_number"); ok {
		t.Error("StringField(build_number) ok = true, want false")
	}

	leaf, ok := doc.Path("tests", "fast", "a.html", "actual")
	if !ok {
		t.Fatal("Path() missing")
	}
	if s, _ := leaf.AsString(); s != "PASS" {
		t.Errorf("Path() = %q, want PASS", s)
	}
	if _, ok := doc.Path("tests", "slow"); ok {
		t.Error("Path(tests, slow) ok = true, want false")
	}

	list, _ := doc.Field("list")
	if list.Len() != 2 {
		t.Errorf("Len() = %d, want 2", list.Len())
	}
	if item, ok := list.Index(1); !ok {
		t.Error("Index(1) missing")
	} else if s, _ := item.AsString(); s != "y" {
		t.Errorf("Index(1) = %q, want y", s)
	}
	if _, ok := list.Index(2); ok {
		t.Error("Index(2) ok = true, want false")
	}
	if _, ok := list.Field("x"); ok {
		t.Error("Field on list ok = true, want false")
	}
}

func TestDocument_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "key order ignored", a: `{"a":1,"b":2}`, b: `{"b":2,"a":1}`, want: true},
		{name: "numeric equality", a: `1.0`, b: `1`, want: true},
		{name: "list order matters", a: `[1,2]`, b: `[2,1]`, want: false},
		{name: "different kinds", a: `"1"`, b: `1`, want: false},
		{name: "missing key", a: `{"a":1}`, b: `{"a":1,"b":2}`, want: false},
		{name: "nested", a: `{"a":[{"x":null}]}`, b: `{"a":[{"x":null}]}`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.a).Equal(mustParse(t, tt.b)); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocument_Interface(t *testing.T) {
	doc := mustParse(t, `{"passed": true, "tests": ["a", 1]}`)
	want := map[string]interface{}{
		"passed": true,
		"tests":  []interface{}{"a", json.Number("1")},
	}
	if diff := cmp.Diff(want, doc.Interface()); diff != "" {
		t.Errorf("Interface() mismatch (-want +got):\n%s", diff)
	}
}

func TestDocument_UnmarshalJSON(t *testing.T) {
	var payload struct {
		Name string   `json:"name"`
		Body Document `json:"body"`
	}
	if err := json.Unmarshal([]byte(`{"name":"x","body":{"k":[1]}}`), &payload); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := payload.Body.String(); got != `{"k":[1]}` {
		t.Errorf("Body = %s, want {\"k\":[1]}", got)
	}
}

func TestDocument_DuplicateAndEscapedKeys(t *testing.T) {
	doc := mustParse(t, `{"b": 1, "a\/b": "x\"y", "b": 2, "é": {}}`)

	if diff := cmp.Diff([]string{"b", "a/b", "é"}, doc.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if n, _ := doc.IntField("b"); n != 2 {
		t.Errorf("IntField(b) = %d, want 2", n)
	}
	if s, _ := doc.StringField("a/b"); s != `x"y` {
		t.Errorf("StringField(a/b) = %q", s)
	}
	if empty, ok := doc.Field("é"); !ok || empty.Kind() != Map || empty.Len() != 0 {
		t.Errorf("Field(é) = %v, %v", empty, ok)
	}
}

func TestParseFirst(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "single line", input: `{"id": "1", "number": 2}`, want: `{"id":"1","number":2}`},
		{name: "indented", input: "{\n  \"id\": \"8800\",\n  \"number\": 42\n}\n", want: `{"id":"8800","number":42}`},
		{name: "several values", input: "{\"number\": 3}\n{\"number\": 2}\n", want: `{"number":3}`},
		{name: "leading blank lines", input: "\n\n[1]\n", want: `[1]`},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseFirst([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFirst() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && doc.String() != tt.want {
				t.Errorf("ParseFirst() = %s, want %s", doc.String(), tt.want)
			}
		})
	}
}
