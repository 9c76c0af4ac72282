// Package results wraps decoded result payloads.
//
// TestResult follows the full_results.json layout written by the web test
// runner: top-level metadata plus a "tests" trie whose leaves carry
// "actual" and "expected". StepLogPayload is the json.output of a build
// step, whose shape is owned by the step.
package results

import (
	"sort"
	"strings"

	"results-agent/src/jsondoc"
)

// TestResult is a decoded web test results document. It is never modified
// after construction.
type TestResult struct {
	doc      jsondoc.Document
	stepName string
}

// NewTestResult wraps doc. stepName is the step the results came from and
// may be empty.
func NewTestResult(doc jsondoc.Document, stepName string) *TestResult {
	return &TestResult{doc: doc, stepName: stepName}
}

// Document returns the underlying JSON.
func (r *TestResult) Document() jsondoc.Document { return r.doc }

func (r *TestResult) StepName() string { return r.stepName }

func (r *TestResult) BuilderName() string {
	s, _ := r.doc.StringField("builder_name")
	return s
}

// ChromiumRevision returns the revision the results were produced at.
// The runner has written it both as a string and as a number.
func (r *TestResult) ChromiumRevision() (string, bool) {
	v, ok := r.doc.Field("chromium_revision")
	if !ok {
		return "", false
	}
	if s, isString := v.AsString(); isString {
		return s, s != ""
	}
	if v.Kind() == jsondoc.Number {
		return v.String(), true
	}
	return "", false
}

// Interrupted reports whether the run was cut short.
func (r *TestResult) Interrupted() bool {
	v, ok := r.doc.Field("interrupted")
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}

// TestCase is one leaf of the tests trie.
type TestCase struct {
	Name         string
	Actual       string
	Expected     string
	IsUnexpected bool
	Raw          jsondoc.Document
}

// TestNames returns every test in the trie, sorted.
func (r *TestResult) TestNames() []string {
	var names []string
	r.walk(func(tc TestCase) { names = append(names, tc.Name) })
	sort.Strings(names)
	return names
}

// Tests returns every test leaf sorted by name.
func (r *TestResult) Tests() []TestCase {
	var tests []TestCase
	r.walk(func(tc TestCase) { tests = append(tests, tc) })
	sort.Slice(tests, func(i, j int) bool { return tests[i].Name < tests[j].Name })
	return tests
}

// ResultForTest looks up a test by its slash-separated name.
func (r *TestResult) ResultForTest(name string) (TestCase, bool) {
	node, ok := r.doc.Field("tests")
	if !ok {
		return TestCase{}, false
	}
	for _, part := range strings.Split(name, "/") {
		node, ok = node.Field(part)
		if !ok {
			return TestCase{}, false
		}
	}
	if !isLeaf(node) {
		return TestCase{}, false
	}
	return leaf(name, node), true
}

// DidntRunAsExpected returns the sorted names of tests flagged unexpected.
func (r *TestResult) DidntRunAsExpected() []string {
	var names []string
	r.walk(func(tc TestCase) {
		if tc.IsUnexpected {
			names = append(names, tc.Name)
		}
	})
	sort.Strings(names)
	return names
}

func (r *TestResult) walk(visit func(TestCase)) {
	root, ok := r.doc.Field("tests")
	if !ok {
		return
	}
	var rec func(prefix string, node jsondoc.Document)
	rec = func(prefix string, node jsondoc.Document) {
		if isLeaf(node) {
			visit(leaf(prefix, node))
			return
		}
		for _, k := range node.Keys() {
			child, _ := node.Field(k)
			name := k
			if prefix != "" {
				name = prefix + "/" + k
			}
			rec(name, child)
		}
	}
	rec("", root)
}

func isLeaf(node jsondoc.Document) bool {
	_, hasActual := node.Field("actual")
	_, hasExpected := node.Field("expected")
	return hasActual && hasExpected
}

func leaf(name string, node jsondoc.Document) TestCase {
	tc := TestCase{Name: name, Raw: node}
	tc.Actual, _ = node.StringField("actual")
	tc.Expected, _ = node.StringField("expected")
	if v, ok := node.Field("is_unexpected"); ok {
		tc.IsUnexpected, _ = v.AsBool()
	}
	return tc
}

// StepLogPayload is the json.output of a CI step. It is never modified
// after construction.
type StepLogPayload struct {
	doc jsondoc.Document
}

func NewStepLogPayload(doc jsondoc.Document) *StepLogPayload {
	return &StepLogPayload{doc: doc}
}

// Document returns the underlying JSON.
func (p *StepLogPayload) Document() jsondoc.Document { return p.doc }
