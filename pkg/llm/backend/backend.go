// Package backend classifies upstream inference responses by wire format.
package backend

import "strings"

// Type is the response wire format of an upstream backend.
type Type int

const (
	// Unknown responses are forwarded without usage extraction.
	Unknown Type = iota

	// Ollama streams newline-delimited JSON objects.
	Ollama

	// OpenAI streams server-sent events.
	OpenAI
)

// Supported backend name constants
const (
	NameOllama  = "ollama"
	NameOpenAI  = "openai"
	NameUnknown = "unknown"
)

// String returns the canonical backend name.
func (t Type) String() string {
	switch t {
	case Ollama:
		return NameOllama
	case OpenAI:
		return NameOpenAI
	default:
		return NameUnknown
	}
}

// contentTypes maps content-type substrings to backends. Order matters: the
// first matching entry wins.
var contentTypes = []struct {
	substr  string
	backend Type
}{
	{"application/x-ndjson", Ollama},
	{"application/json", Ollama},
	{"text/event-stream", OpenAI},
}

// Classify maps a response Content-Type header value to a backend.
//
// Matching is a case-sensitive substring check and trusts the header alone:
// any "application/json" response is treated as Ollama, even one produced by
// an unrelated JSON API.
func Classify(contentType string) Type {
	for _, ct := range contentTypes {
		if strings.Contains(contentType, ct.substr) {
			return ct.backend
		}
	}
	return Unknown
}
