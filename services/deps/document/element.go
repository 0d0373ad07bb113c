// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document parses pattern and measurement XML into a generic
// element tree.
//
// The tree is transient: the categorizer walks it once and then drops it.
// Only well-formedness is checked here; element meaning is assigned later.
package document

// Attr is one XML attribute in source order.
type Attr struct {
	Name  string
	Value string
}

// Element is a node of the parsed document.
type Element struct {
	// Tag is the local element name, without namespace.
	Tag string

	// Attrs holds the attributes in source order.
	Attrs []Attr

	// Children holds child elements in source order.
	Children []*Element

	// Text is the trimmed character data directly inside the element.
	Text string

	// Line is the 1-based source line of the start tag.
	Line int
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrMap returns the attributes as a map.
func (e *Element) AttrMap() map[string]string {
	m := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		m[a.Name] = a.Value
	}
	return m
}

// Child returns the first direct child with the given tag.
func (e *Element) Child(tag string) (*Element, bool) {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c, true
		}
	}
	return nil, false
}

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the visited element.
func (e *Element) Walk(fn func(*Element) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Count returns the number of elements in the subtree rooted at e.
func (e *Element) Count() int {
	n := 0
	e.Walk(func(*Element) bool {
		n++
		return true
	})
	return n
}
