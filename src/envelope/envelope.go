// Package envelope decodes the three framings result payloads arrive in:
// plain JSON, the JSONP-like ADD_RESULTS(...); wrapper, and the prpc
// anti-sniffing prefix.
package envelope

import (
	"bytes"
	"fmt"

	"results-agent/src/jsondoc"
	"results-agent/src/provider"
)

const (
	JSONPPrefix = "ADD_RESULTS("
	JSONPSuffix = ");"

	// PrpcPrefix is prepended by prpc servers to every JSON response body.
	PrpcPrefix = ")]}'\n"
)

// Plain decodes an unframed JSON document.
func Plain(body []byte) (jsondoc.Document, error) {
	doc, err := jsondoc.Parse(body)
	if err != nil {
		return jsondoc.Document{}, fmt.Errorf("%w: %v", provider.ErrDecode, err)
	}
	return doc, nil
}

// First decodes the first JSON value of a command's output. Tools that print
// one value per line, or one indented value, are both accepted.
func First(out []byte) (jsondoc.Document, error) {
	doc, err := jsondoc.ParseFirst(out)
	if err != nil {
		return jsondoc.Document{}, fmt.Errorf("%w: %v", provider.ErrDecode, err)
	}
	return doc, nil
}

// HasJSONPWrapper reports whether body is framed as ADD_RESULTS(...);.
func HasJSONPWrapper(body []byte) bool {
	return len(body) >= len(JSONPPrefix)+len(JSONPSuffix) &&
		bytes.HasPrefix(body, []byte(JSONPPrefix)) &&
		bytes.HasSuffix(body, []byte(JSONPSuffix))
}

// StripJSONP removes the ADD_RESULTS(...); frame when present and returns
// body unchanged otherwise.
func StripJSONP(body []byte) []byte {
	if !HasJSONPWrapper(body) {
		return body
	}
	return body[len(JSONPPrefix) : len(body)-len(JSONPSuffix)]
}

// JSONP decodes a results body. Older result archives stored the bare JSON,
// so an unwrapped body is accepted as well.
func JSONP(body []byte) (jsondoc.Document, error) {
	return Plain(StripJSONP(bytes.TrimSpace(body)))
}

// Prefixed decodes a prpc response. The body must start with PrpcPrefix.
func Prefixed(body []byte) (jsondoc.Document, error) {
	if !bytes.HasPrefix(body, []byte(PrpcPrefix)) {
		return jsondoc.Document{}, fmt.Errorf("%w: response does not start with %q", provider.ErrDecode, PrpcPrefix)
	}
	return Plain(body[len(PrpcPrefix):])
}

// MaybePrefixed strips PrpcPrefix when present and decodes the rest.
func MaybePrefixed(body []byte) (jsondoc.Document, error) {
	return Plain(bytes.TrimPrefix(body, []byte(PrpcPrefix)))
}
