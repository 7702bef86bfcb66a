// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"copygc/internal/gclog"
)

// pairTypeCode is the reserved header value for the two-word test
// shape used across this package's tests: word 0 is the type code,
// word 1 is a single tagged field.
const pairTypeCode uintptr = 0xBEEF

var pairTypeCodeVar = pairTypeCode

func newPairShapeTable() *ShapeTable {
	t := NewShapeTable(gclog.New(nil))
	t.AddHeaderfulNonFinalizable(&Shape{
		Name:              "pair",
		TypeCode:          &pairTypeCodeVar,
		ObjectHasShape:    func(header uintptr) bool { return header == pairTypeCode },
		ObjectSizeInBytes: func(ptr uintptr) uintptr { return 2 * wordSize },
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
	return t
}

// testConfig is DefaultConfig tuned to a small, deterministic test
// layout: block 4096, min object 16 B (2 words on a 64-bit build), 0
// ageing steps, nursery threshold 16384.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinObjectWords = 2
	cfg.AgeingSteps = 0
	cfg.InitialNursery = 16384
	cfg.MinNursery = 4096
	return cfg
}

func newTestHeaplet(cfg Config) (*Heap, *Heaplet) {
	shapes := newPairShapeTable()
	h := NewHeap(cfg, shapes, gclog.New(nil), DefaultAllocator{})
	hl := NewHeaplet(h)
	return h, hl
}

// allocHeaderful bump-allocates a two-word headerful object directly
// in the nursery (bypassing AllocateSlowPath's action resolution,
// which tests drive explicitly) and returns its tagged pointer.
func allocHeaderful(hl *Heaplet, typeCode uintptr, field Word) Word {
	size := 2 * wordSize
	if hl.nursery.limit-hl.nursery.allocPtr < size {
		hl.nursery.changeAllocationBlock(hl)
	}
	off := hl.nursery.allocPtr
	hl.nursery.allocPtr += size
	mem := hl.nursery.allocBlock.mem
	writeWord(mem, off, typeCode)
	writeWord(mem, off+wordSize, uintptr(field))
	return TagPointer(hl.nursery.allocBlock.base + off)
}

// allocPair is allocHeaderful specialized to the pair shape.
func allocPair(hl *Heaplet, field Word) Word {
	return allocHeaderful(hl, pairTypeCode, field)
}

func pairField(hl *Heaplet, w Word) Word {
	b := hl.heap.blockOf(w.Pointer())
	off := w.Pointer() - b.base
	return Word(readWord(b.mem, off+wordSize))
}

func setPairField(hl *Heaplet, w Word, v Word) {
	b := hl.heap.blockOf(w.Pointer())
	off := w.Pointer() - b.base
	writeWord(b.mem, off+wordSize, uintptr(v))
}
