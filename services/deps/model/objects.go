// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "sort"

// Bucket is the insertion-ordered set of elements of one category.
type Bucket struct {
	keys  []string
	byKey map[string]*FilteredElement
}

func newBucket() *Bucket {
	return &Bucket{byKey: make(map[string]*FilteredElement)}
}

// Keys returns the element keys in insertion order.
func (b *Bucket) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Get returns the element stored under key.
func (b *Bucket) Get(key string) (*FilteredElement, bool) {
	e, ok := b.byKey[key]
	return e, ok
}

// Len returns the number of elements.
func (b *Bucket) Len() int {
	return len(b.keys)
}

// Objects maps each category to its bucket of elements.
//
// Description:
//
//	Objects is the ObjectsByType collection. Insert keeps the first element
//	stored under a key and reports later ones as collisions. Objects is
//	mutated only by the categorizer.
type Objects struct {
	buckets map[Category]*Bucket
	order   []Category
	byID    map[string]*FilteredElement
	count   int
}

// NewObjects creates an empty collection.
func NewObjects() *Objects {
	return &Objects{
		buckets: make(map[Category]*Bucket),
		byID:    make(map[string]*FilteredElement),
	}
}

// Insert stores e under its key within its category.
//
// Outputs:
//
//	*FilteredElement - The element already stored under the key, if any.
//	bool - True if e was stored, false on a key collision.
func (o *Objects) Insert(e *FilteredElement) (*FilteredElement, bool) {
	b, ok := o.buckets[e.Category]
	if !ok {
		b = newBucket()
		o.buckets[e.Category] = b
		o.order = append(o.order, e.Category)
	}
	key := e.Key()
	if existing, dup := b.byKey[key]; dup {
		return existing, false
	}
	b.byKey[key] = e
	b.keys = append(b.keys, key)
	if _, seen := o.byID[e.ID]; !seen {
		o.byID[e.ID] = e
	}
	o.count++
	return nil, true
}

// Bucket returns the bucket for a category.
func (o *Objects) Bucket(c Category) (*Bucket, bool) {
	b, ok := o.buckets[c]
	return b, ok
}

// Get returns the element stored under key in category c.
func (o *Objects) Get(c Category, key string) (*FilteredElement, bool) {
	b, ok := o.buckets[c]
	if !ok {
		return nil, false
	}
	return b.Get(key)
}

// ByID returns the element with the given identifier.
func (o *Objects) ByID(id string) (*FilteredElement, bool) {
	e, ok := o.byID[id]
	return e, ok
}

// Categories returns the populated categories in first-seen order.
func (o *Objects) Categories() []Category {
	out := make([]Category, len(o.order))
	copy(out, o.order)
	return out
}

// Len returns the total number of stored elements.
func (o *Objects) Len() int {
	return o.count
}

// All returns every stored element in document order.
func (o *Objects) All() []*FilteredElement {
	out := make([]*FilteredElement, 0, o.count)
	for _, c := range o.order {
		b := o.buckets[c]
		for _, k := range b.keys {
			out = append(out, b.byKey[k])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Counts returns the number of elements per populated category.
func (o *Objects) Counts() map[Category]int {
	out := make(map[Category]int, len(o.buckets))
	for c, b := range o.buckets {
		out[c] = b.Len()
	}
	return out
}
