// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Body provides a fluent interface for building JSON request payloads
// using sjson for path-based manipulation.
//
// The Body builder tracks errors internally to enable method chaining
// while providing error checking through String() or Err() methods.
//
// Example:
//
//	body := axonius.Body{}.
//	    Set("name", "Windows hosts").
//	    Set("view.pageSize", 50).
//	    Set("view.fields", []string{"specific_data.data.hostname"})
//
//	value, err := body.String()
//	if err != nil {
//	    log.Fatal(err)
//	}
type Body struct {
	// str contains the JSON string being built
	str string
	// err tracks the first error encountered during building
	err error
}

// NewBody starts a Body from an existing JSON document. Invalid JSON puts the
// Body in error state.
func NewBody(raw string) Body {
	if raw == "" {
		return Body{}
	}
	if !gjson.Valid(raw) {
		return Body{err: fmt.Errorf("NewBody: invalid JSON document")}
	}
	return Body{str: raw}
}

// Set sets a value at the specified JSON path and returns a new Body
//
// If an error occurs, the error is stored and returned by String() or Err().
// Once an error occurs, all subsequent operations are no-ops that preserve the error.
func (b Body) Set(path string, value any) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Set(b.str, path, value)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Set(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// SetRaw sets raw JSON at the specified path without re-encoding it.
func (b Body) SetRaw(path, raw string) Body {
	if b.err != nil {
		return b
	}
	if !gjson.Valid(raw) {
		return Body{str: b.str, err: fmt.Errorf("SetRaw(%q): invalid JSON value", path)}
	}

	result, err := sjson.SetRaw(b.str, path, raw)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("SetRaw(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// Delete removes a value at the specified JSON path and returns a new Body
func (b Body) Delete(path string) Body {
	if b.err != nil {
		return b
	}

	result, err := sjson.Delete(b.str, path)
	if err != nil {
		return Body{str: b.str, err: fmt.Errorf("Delete(%q): %w", path, err)}
	}
	return Body{str: result, err: nil}
}

// Resource wraps the current document as the attributes of a JSON:API
// resource object of the given type:
//
//	{"data": {"type": resourceType, "attributes": <current document>}}
func (b Body) Resource(resourceType string) Body {
	if b.err != nil {
		return b
	}
	attrs := b.str
	if attrs == "" {
		attrs = "{}"
	}
	return Body{}.
		Set("data.type", resourceType).
		SetRaw("data.attributes", attrs)
}

// String returns the JSON string representation and any error encountered during building
func (b Body) String() (string, error) {
	return b.str, b.err
}

// Bytes returns the JSON document as bytes and any building error
func (b Body) Bytes() ([]byte, error) {
	return []byte(b.str), b.err
}

// Err returns any error that occurred during the building process
func (b Body) Err() error {
	return b.err
}

// Res returns the JSON string for further processing with gjson.
// If an error occurred during building, this returns an empty string.
func (b Body) Res() string {
	if b.err != nil {
		return ""
	}
	return b.str
}
