// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

// updateHeuristics runs after a minor collection to resize the
// nursery threshold from the weighted recent survival rate, and after
// a major collection to resize the oldspace threshold from the bytes
// that survived. Kind global is treated like major for sizing
// purposes, since it performs the same old-generation scavenge.
//
// This runs after flipSpaces, so hl.nursery and hl.oldspace no longer
// identify the Space objects that actually
// served as fromspace/tospace during this collection; c.fromspaces
// and c.tospaces, captured at setup time, still do.
func updateHeuristics(hl *Heaplet, kind Kind, c *Collection, initialUsed, finalUsed map[*Space]uint64) {
	switch kind {
	case KindMinor:
		ratio := survivalRatio(c.fromspaces[0], c.tospaces[0], initialUsed, finalUsed)
		hl.minorSurvival.record(ratio)
		resizeNurseryThreshold(hl)
	case KindMajor, KindGlobal:
		fromOld := c.fromspaces[len(c.fromspaces)-1]
		toOld := c.tospaces[len(c.tospaces)-1]
		ratio := survivalRatio(fromOld, toOld, initialUsed, finalUsed)
		hl.majorSurvival.record(ratio)
		resizeOldspaceThreshold(hl, finalUsed[toOld])
	}
}

// survivalRatio is survived bytes (the destination's growth) divided
// by the fromspace's occupancy before the collection.
func survivalRatio(from, dest *Space, initialUsed, finalUsed map[*Space]uint64) float64 {
	before := initialUsed[from]
	if before == 0 {
		return 0
	}
	survived := finalUsed[dest] - initialUsed[dest]
	return float64(survived) / float64(before)
}

func resizeNurseryThreshold(hl *Heaplet) {
	cfg := hl.cfg
	survival := hl.minorSurvival.weightedAverage(cfg.RecentBias)

	t := hl.nurseryThreshold
	switch {
	case survival < cfg.SurvivalLow:
		t = uintptr(float64(t) * cfg.ShrinkageRatio)
	case survival > cfg.SurvivalHigh:
		t = uintptr(float64(t) * cfg.GrowthRatio)
	}
	if t < cfg.MinNursery {
		t = cfg.MinNursery
	}
	if t > cfg.MaxNursery {
		t = cfg.MaxNursery
	}
	hl.nurseryThreshold = roundUpToBlock(t, cfg.BlockSize)
}

func resizeOldspaceThreshold(hl *Heaplet, alive uint64) {
	cfg := hl.cfg

	good := uintptr(float64(alive) / cfg.SurvivalTarget)
	if good < cfg.MinOldspace {
		good = cfg.MinOldspace
	}
	if good > cfg.MaxOldspace {
		good = cfg.MaxOldspace
	}
	if good < uintptr(alive) {
		good = uintptr(alive)
	}
	hl.oldspaceThreshold = roundUpToBlock(good, cfg.BlockSize)
}

// trimUnusedPool is the post-major trim: keep
// roughly oldspaceThreshold + (1+2N)*nurseryThreshold bytes of
// working-set capacity, minus bytes currently allocated across all
// non-unused spaces, and free unused blocks from the tail of the list
// until that target is reached.
func trimUnusedPool(hl *Heaplet) {
	n := len(hl.ageing)
	target := hl.oldspaceThreshold + uintptr(1+2*n)*hl.nurseryThreshold

	var allocated uintptr
	for _, s := range hl.allSpaces() {
		if s == hl.unused {
			continue
		}
		allocated += uintptr(s.allocatedSize)
	}

	var wantUnused uintptr
	if target > allocated {
		wantUnused = target - allocated
	}
	wantBlocks := wantUnused / hl.cfg.BlockSize

	haveBlocks := countBlocks(hl.unused)
	for haveBlocks > int(wantBlocks) && hl.unused.tail != nil {
		b := hl.unused.tail
		hl.unused.unlink(b)
		blockRelease(hl.heap, b)
		haveBlocks--
	}
}
