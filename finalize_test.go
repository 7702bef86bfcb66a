// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copygc/internal/gclog"
)

// TestCompleteObjectFinalizer checks that a complete-object finalizer
// observes a valid (non-broken-heart) pointer field, and runs exactly
// once.
func TestCompleteObjectFinalizer(t *testing.T) {
	const cTypeCode uintptr = 0xC0DE
	var calls int
	var h *Heap
	var fieldHeader uintptr

	shapes := NewShapeTable(gclog.New(nil))
	shapes.AddHeaderfulCompleteFinalizable(&Shape{
		Name:              "c",
		TypeCode:          ptrTo(cTypeCode),
		ObjectHasShape:    func(h uintptr) bool { return h == cTypeCode },
		ObjectSizeInBytes: func(uintptr) uintptr { return 2 * wordSize },
		ObjectCopy: func(dstMem []byte, dstOff uintptr, srcMem []byte, srcOff, oldSize uintptr) uintptr {
			writeWord(dstMem, dstOff, readWord(srcMem, srcOff))
			writeWord(dstMem, dstOff+wordSize, readWord(srcMem, srcOff+wordSize))
			return oldSize
		},
		ObjectUpdateFields: func(c *Collection, mem []byte, off uintptr) uintptr {
			handleWordAt(c, mem, off+wordSize)
			return 2 * wordSize
		},
		Finalize: func(ptr uintptr) {
			calls++
			b := h.blockOf(ptr)
			field := Word(readWord(b.mem, ptr-b.base+wordSize))
			if fb := h.blockOf(field.Pointer()); fb != nil {
				fieldHeader = readWord(fb.mem, field.Pointer()-fb.base)
			}
		},
	})
	shapes.AddHeaderfulNonFinalizable(&Shape{
		Name:              "wrapper",
		TypeCode:          ptrTo(pairTypeCode),
		ObjectHasShape:    func(h uintptr) bool { return h == pairTypeCode },
		ObjectSizeInBytes: func(uintptr) uintptr { return 2 * wordSize },
		ObjectCopy: func(dstMem []byte, dstOff uintptr, srcMem []byte, srcOff, oldSize uintptr) uintptr {
			writeWord(dstMem, dstOff, readWord(srcMem, srcOff))
			writeWord(dstMem, dstOff+wordSize, readWord(srcMem, srcOff+wordSize))
			return oldSize
		},
		ObjectUpdateFields: func(c *Collection, mem []byte, off uintptr) uintptr {
			handleWordAt(c, mem, off+wordSize)
			return 2 * wordSize
		},
	})

	cfg := testConfig()
	h = NewHeap(cfg, shapes, gclog.New(nil), DefaultAllocator{})
	hl := NewHeaplet(h)

	wrapped := allocPair(hl, Word(42<<1))
	cObj := allocHeaderful(hl, cTypeCode, wrapped)
	RegisterFinalizable(hl, cObj.Pointer(), shapes.completeFinalizable[0])

	// Force a promotion to oldspace, then drop all roots so the next
	// major collection finds the object dead.
	root := []Word{cObj}
	handle := hl.globalRoots.Register(hl.log, root)
	collect(hl, KindMinor)
	hl.globalRoots.Deregister(handle)

	collect(hl, KindMajor)

	require.Equal(t, 1, calls)
	assert.Equal(t, 1, calls, "finalizer must run exactly once")
	assert.Equal(t, pairTypeCode, fieldHeader, "finalizer must see a live, non-forwarded field target")
}

func ptrTo(v uintptr) *uintptr { return &v }
