// Package sse provides minimal, incremental SSE (Server-Sent Events) framing
// for the tokentap proxy. It reassembles complete event blocks out of
// arbitrarily chunked upstream bytes so they can be inspected while the raw
// bytes are forwarded untouched elsewhere.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

// DoneSentinel is the data payload OpenAI-compatible servers send to mark the
// end of a stream. It carries no JSON.
const DoneSentinel = "[DONE]"

// LineKind classifies a single line inside an event block.
type LineKind int

const (
	// LineEmpty is a blank or whitespace-only line.
	LineEmpty LineKind = iota

	// LineComment starts with ':' and is used for keep-alives.
	LineComment

	// LineData is a "data:" field line.
	LineData

	// LineDone is the "data: [DONE]" sentinel.
	LineDone

	// LineOther is any other field ("event:", "id:", "retry:", unknown).
	LineOther
)

// Line is one classified line of an event block.
type Line struct {
	Kind LineKind

	// Field is the field name, empty for blank and comment lines.
	Field string

	// Value is the field value with a single leading space stripped.
	Value string
}

// ParseLine classifies a single line of an event block.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func ParseLine(raw string) Line {
	line := strings.TrimSpace(raw)

	switch {
	case line == "":
		return Line{Kind: LineEmpty}
	case strings.HasPrefix(line, ":"):
		return Line{Kind: LineComment, Value: line[1:]}
	}

	field, value, ok := strings.Cut(line, ":")
	if !ok {
		// Line with no colon: the entire line is the field name with
		// an empty value.
		return Line{Kind: LineOther, Field: line}
	}
	value = strings.TrimPrefix(value, " ")

	if field != "data" {
		return Line{Kind: LineOther, Field: field, Value: value}
	}
	if value == DoneSentinel {
		return Line{Kind: LineDone, Field: field, Value: value}
	}
	return Line{Kind: LineData, Field: field, Value: value}
}

// Lines splits an event block into classified lines. Both "\n" and "\r\n"
// line endings are accepted.
func Lines(block []byte) []Line {
	raw := strings.Split(string(block), "\n")
	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		lines = append(lines, ParseLine(r))
	}
	return lines
}
