// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

// Generation is the lifetime class of a Space.
type Generation uint8

const (
	GenYoung Generation = iota
	GenOld
	GenShared
	GenUnused
	GenImmortal
)

func (g Generation) String() string {
	switch g {
	case GenYoung:
		return "young"
	case GenOld:
		return "old"
	case GenShared:
		return "shared"
	case GenUnused:
		return "unused"
	case GenImmortal:
		return "immortal"
	default:
		return "generation?"
	}
}

// Space is a logical region: a linked list of blocks plus an
// allocation cursor, a scan cursor, a generation tag, and the head of
// the finalizable-registration list for objects living in it.
type Space struct {
	name       string
	generation Generation

	head, tail *Block

	allocBlock      *Block
	allocPtr, limit uintptr

	scanBlock *Block
	scanPtr   uintptr

	usedSize, allocatedSize uint64

	finalizables *finalizableList

	// Transient, valid only during collection.
	destination   *Space
	scavengedFrom bool
	cleanBefore   bool
	cleanAfter    bool
	cleanKeepOne  bool
}

func newSpace(name string, gen Generation) *Space {
	return &Space{name: name, generation: gen, finalizables: newFinalizableList()}
}

func (s *Space) pushTail(b *Block) {
	b.space = s
	b.generation = s.generation
	b.prev, b.next = s.tail, nil
	if s.tail != nil {
		s.tail.next = b
	} else {
		s.head = b
	}
	s.tail = b
}

func (s *Space) unlink(b *Block) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		s.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		s.tail = b.prev
	}
	b.prev, b.next = nil, nil
}

func (s *Space) unlinkHead() *Block {
	if s.head == nil {
		return nil
	}
	b := s.head
	s.unlink(b)
	return b
}

// setAllocationBlock installs b as the space's current allocation
// block, closing out the previous one's used-byte accounting.
func (s *Space) setAllocationBlock(b *Block) {
	if s.allocBlock != nil {
		s.allocBlock.usedLimit = s.allocPtr
		s.usedSize += uint64(s.allocPtr - payloadStart())
	}
	s.allocBlock = b
	b.usedLimit = noUsedLimit
	s.allocPtr = payloadStart()
	s.limit = b.payloadEnd()
}

// procureAllocationBlock acquires a fresh block and installs it as
// the space's current allocation block.
func (s *Space) procureAllocationBlock(hl *Heaplet) {
	b := blockAcquire(hl)
	s.allocatedSize += uint64(hl.heap.cfg.BlockSize)
	if b.space != s {
		s.pushTail(b)
	}
	s.setAllocationBlock(b)
}

// changeAllocationBlock advances to the next block in the space's
// list, or acquires one. It never triggers a collection; the
// collection-time allocator and AllocateSlowPath's block change both
// use it.
func (s *Space) changeAllocationBlock(hl *Heaplet) {
	if s.allocBlock != nil && s.allocBlock.next != nil {
		s.setAllocationBlock(s.allocBlock.next)
		return
	}
	s.procureAllocationBlock(hl)
}

// setScanBlock installs b as the space's current scan block.
func (s *Space) setScanBlock(b *Block, atAllocationPointer bool) {
	s.scanBlock = b
	if atAllocationPointer {
		s.scanPtr = s.allocPtr
	} else {
		s.scanPtr = payloadStart()
	}
}

// usedSizeInBytes returns the space's total live byte count.
func (s *Space) usedSizeInBytes() uint64 {
	n := s.usedSize
	if s.allocBlock != nil {
		n += uint64(s.allocPtr - payloadStart())
	}
	return n
}

// moveToFrom splices from's blocks onto to in three phases, so the
// splice alone could run inside a lock-held critical section. The
// phases are separate functions, but every caller uses the moveToFrom
// wrapper, which runs all three in sequence (DestroyHeaplet holds the
// heap lock around the whole call).
func moveToFromUnsync1(to, from *Space, setSpace, setGeneration bool) uint64 {
	used := from.usedSizeInBytes()
	if setSpace || setGeneration {
		for b := from.head; b != nil; b = b.next {
			if setSpace {
				b.space = to
			}
			if setGeneration {
				b.generation = to.generation
			}
		}
	}
	return used
}

func moveToFromSync2(to, from *Space, usedBytes uint64, clear bool) {
	if from.head == nil {
		return
	}
	if !clear {
		to.finalizables.appendAll(from.finalizables)
		to.usedSize += usedBytes
	}
	if to.tail == nil {
		to.head = from.head
	} else {
		to.tail.next = from.head
		from.head.prev = to.tail
	}
	to.tail = from.tail
	to.allocatedSize += from.allocatedSize
}

func moveToFromUnsync3(from *Space) {
	from.head, from.tail = nil, nil
	from.allocBlock, from.scanBlock = nil, nil
	from.allocPtr, from.limit, from.scanPtr = 0, 0, 0
	from.usedSize, from.allocatedSize = 0, 0
	from.finalizables = newFinalizableList()
}

func moveToFrom(to, from *Space, setSpace, setGeneration, clear bool) {
	used := moveToFromUnsync1(to, from, setSpace, setGeneration)
	moveToFromSync2(to, from, used, clear)
	moveToFromUnsync3(from)
}
