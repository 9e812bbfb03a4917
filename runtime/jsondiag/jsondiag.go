// Package jsondiag extracts position information from JSON decoding errors
// and renders caret-style diagnostics. Tool arguments arrive as model-emitted
// JSON, so decode failures need enough context to debug truncated or
// malformed payloads without dumping the whole document into the error.
package jsondiag

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Info describes where in a document a JSON decoding error occurred.
type Info struct {
	// Msg is the underlying decoder error message.
	Msg string

	// Pos is the byte offset of the error within Doc, or -1 when the
	// decoder did not report one.
	Pos int

	// Line and Col are the 1-based position derived from Pos.
	Line, Col int

	// Doc is the document that failed to decode.
	Doc string

	// ErrorLine is the text of the line containing the error.
	ErrorLine string

	// Lines is Doc split on newlines.
	Lines []string
}

// Extract derives position info from err against doc. Offsets are taken
// from json.SyntaxError and json.UnmarshalTypeError; other error kinds yield
// Pos -1.
func Extract(doc string, err error) Info {
	info := Info{
		Msg:   err.Error(),
		Pos:   -1,
		Doc:   doc,
		Lines: strings.Split(doc, "\n"),
	}

	var offset int64 = -1
	var synErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &synErr):
		offset = synErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 || offset > int64(len(doc)) {
		return info
	}

	info.Pos = int(offset)
	info.Line = 1 + strings.Count(doc[:info.Pos], "\n")
	lastNL := strings.LastIndexByte(doc[:info.Pos], '\n')
	info.Col = info.Pos - lastNL // lastNL is -1 for the first line
	if info.Line-1 < len(info.Lines) {
		info.ErrorLine = info.Lines[info.Line-1]
	}
	return info
}

// Format renders a caret diagnostic pointing at the error position:
//
//	JSON parsing error, line 2:
//	    "count": tru
//	             ^
//	invalid character 'u' ...
//
// When no position is available or the document is empty it falls back to a
// single-line message.
func Format(doc string, err error) string {
	info := Extract(doc, err)
	if info.Pos < 0 || info.Doc == "" {
		if info.Pos >= 0 {
			return fmt.Sprintf("%s at position %d", info.Msg, info.Pos)
		}
		return info.Msg
	}

	var b strings.Builder
	fmt.Fprintf(&b, "JSON parsing error, line %d:\n", info.Line)
	fmt.Fprintf(&b, "    %s\n", info.ErrorLine)
	fmt.Fprintf(&b, "    %s^\n", strings.Repeat(" ", info.Col-1))
	b.WriteString(info.Msg)
	return b.String()
}

// Context assembles a structured diagnostic payload suitable for logging
// alongside decode failures of model output. modelName identifies the model
// that produced the document and chunkCount the number of streamed chunks
// that assembled it (0 when not streamed).
func Context(doc string, err error, modelName string, chunkCount int) map[string]any {
	info := Extract(doc, err)

	preview := doc
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	if preview == "" {
		preview = "N/A"
	}

	return map[string]any{
		"model_name":                  modelName,
		"chunk_count":                 chunkCount,
		"json_error_msg":              info.Msg,
		"json_error_pos":              info.Pos,
		"json_error_lineno":           info.Line,
		"json_error_colno":            info.Col,
		"formatted_error":             Format(doc, err),
		"problematic_content_preview": preview,
	}
}
