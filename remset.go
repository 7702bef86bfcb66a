// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	remsetEmptySentinel   Word = 0 // address 0 is never a valid heap pointer
	remsetDeletedSentinel Word = 1 // an immediate Word is never stored
)

// RememberedSet is the open-addressed hash set of machine words spec
// §4.3 describes: it holds only boxed pointers whose target's block
// generation was old at insertion time, with uniqueness enforced.
type RememberedSet struct {
	slots []Word
	used  int // occupied, including tombstones
	live  int // occupied, excluding tombstones
}

func newRememberedSet() *RememberedSet {
	return &RememberedSet{slots: make([]Word, 16)}
}

func remsetHash(w Word) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(w))
	return xxhash.Sum64(buf[:])
}

func (s *RememberedSet) probe(w Word) (idx int, found bool) {
	mask := uint64(len(s.slots) - 1)
	i := remsetHash(w) & mask
	firstTombstone := -1
	for {
		slot := s.slots[i]
		switch slot {
		case remsetEmptySentinel:
			if firstTombstone >= 0 {
				return firstTombstone, false
			}
			return int(i), false
		case remsetDeletedSentinel:
			if firstTombstone < 0 {
				firstTombstone = int(i)
			}
		default:
			if slot == w {
				return int(i), true
			}
		}
		i = (i + 1) & mask
	}
}

func (s *RememberedSet) grow() {
	old := s.slots
	s.slots = make([]Word, len(old)*2)
	s.used, s.live = 0, 0
	for _, w := range old {
		if w != remsetEmptySentinel && w != remsetDeletedSentinel {
			s.Insert(w)
		}
	}
}

// Insert adds w, collapsing duplicates.
func (s *RememberedSet) Insert(w Word) {
	if w == remsetEmptySentinel || w == remsetDeletedSentinel {
		return
	}
	if (s.used+1)*2 > len(s.slots) {
		s.grow()
	}
	idx, found := s.probe(w)
	if found {
		return
	}
	if s.slots[idx] == remsetEmptySentinel {
		s.used++
	}
	s.slots[idx] = w
	s.live++
}

func (s *RememberedSet) Contains(w Word) bool {
	_, found := s.probe(w)
	return found
}

func (s *RememberedSet) Remove(w Word) {
	idx, found := s.probe(w)
	if !found {
		return
	}
	s.slots[idx] = remsetDeletedSentinel
	s.live--
}

func (s *RememberedSet) Len() int { return s.live }

// Each calls fn for every live entry. fn must not mutate the set.
func (s *RememberedSet) Each(fn func(Word)) {
	for _, w := range s.slots {
		if w != remsetEmptySentinel && w != remsetDeletedSentinel {
			fn(w)
		}
	}
}

// Rebuild replaces the set's contents in one pass: filter is called
// with each current entry and may return a replacement word (to
// follow a broken heart to its forwarded address) and whether to keep
// it at all (false drops a dead entry). This is the major/global
// "update inter-generational roots" step.
func (s *RememberedSet) Rebuild(filter func(Word) (Word, bool)) {
	fresh := newRememberedSet()
	s.Each(func(w Word) {
		if nw, keep := filter(w); keep {
			fresh.Insert(nw)
		}
	})
	*s = *fresh
}

// rebuildRememberedSet drops entries whose target didn't survive and
// follows broken hearts to their forwarded address for entries that
// did. Called only after a major/global collection, where every
// fromspace has already been fully scavenged so every surviving
// object carries a broken heart at its old address.
func rebuildRememberedSet(hl *Heaplet) {
	hl.rememberedSet.Rebuild(func(w Word) (Word, bool) {
		if w.IsImmediate() {
			return w, false
		}
		b := hl.heap.blockOf(w.Pointer())
		if b == nil {
			return w, false
		}
		off := w.Pointer() - b.base
		if readWord(b.mem, off) != brokenHeartTypeCode {
			return w, false
		}
		fwd := followBrokenHeart(hl.heap, w.Pointer())
		if hl.heap.generationOf(fwd) != GenOld {
			return w, false
		}
		return fwd, true
	})
}
