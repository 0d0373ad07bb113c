// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrParseInput is the sentinel wrapped by every ParseInputError.
var ErrParseInput = errors.New("parse input")

// ErrEmptyDocument is returned when the input holds no root element.
var ErrEmptyDocument = errors.New("document has no root element")

// DefaultMaxBytes caps the size of a document read by ParseFile.
const DefaultMaxBytes = 64 << 20

// ParseInputError reports a document that could not be read or is not
// well-formed XML. It is the only fatal error of a run.
type ParseInputError struct {
	// Path is the source file, empty for in-memory input.
	Path string

	// Line is the 1-based line of the failure, or 0 when unknown.
	Line int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseInputError) Error() string {
	src := e.Path
	if src == "" {
		src = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", src, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", src, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseInputError) Unwrap() error {
	return e.Err
}

// Is matches ErrParseInput.
func (e *ParseInputError) Is(target error) bool {
	return target == ErrParseInput
}

// ParseFile reads and parses the document at path.
//
// Description:
//
//	Reads at most DefaultMaxBytes. Any I/O failure or malformed XML is
//	returned as *ParseInputError.
//
// Outputs:
//
//	*Element - The root element.
//	error - *ParseInputError on failure.
func ParseFile(path string) (*Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseInputError{Path: path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, DefaultMaxBytes+1))
	if err != nil {
		return nil, &ParseInputError{Path: path, Err: err}
	}
	if len(data) > DefaultMaxBytes {
		return nil, &ParseInputError{Path: path, Err: fmt.Errorf("document larger than %d bytes", DefaultMaxBytes)}
	}

	root, err := Parse(bytes.NewReader(data))
	if err != nil {
		var pe *ParseInputError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseInputError{Path: path, Err: err}
	}
	return root, nil
}

// Parse builds the element tree from r.
//
// Description:
//
//	Uses a streaming token decoder with an explicit element stack.
//	Comments, processing instructions and directives are ignored.
//
// Outputs:
//
//	*Element - The root element.
//	error - *ParseInputError if the input is not well-formed.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		root  *Element
		stack []*Element
		text  []*strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			return nil, &ParseInputError{Line: line, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := dec.InputPos()
			el := &Element{Tag: t.Name.Local, Line: line}
			if len(t.Attr) > 0 {
				el.Attrs = make([]Attr, 0, len(t.Attr))
				for _, a := range t.Attr {
					el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ParseInputError{Line: line, Err: errors.New("multiple root elements")}
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			text = append(text, &strings.Builder{})

		case xml.EndElement:
			top := stack[len(stack)-1]
			top.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]

		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		}
	}

	if root == nil {
		return nil, &ParseInputError{Err: ErrEmptyDocument}
	}
	return root, nil
}
