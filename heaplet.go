// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"copygc/internal/gclog"
)

// usedState is a heaplet's membership state during global collection
// coordination.
type usedState uint8

const (
	stateInUse usedState = iota
	stateToBeWokenUp
	stateNotToBeWokenUp
	stateCollecting
)

// survivalWindow is the rolling, recency-weighted history of a single
// collection kind's survival ratio.
type survivalWindow struct {
	ratios []float64 // ring buffer, oldest-to-newest logical order
	next   int
	filled bool
}

func newSurvivalWindow(k int) *survivalWindow {
	return &survivalWindow{ratios: make([]float64, k)}
}

func (w *survivalWindow) record(ratio float64) {
	w.ratios[w.next] = ratio
	w.next = (w.next + 1) % len(w.ratios)
	if w.next == 0 {
		w.filled = true
	}
}

// weightedAverage applies recentBias to the most recently recorded
// ratio and distributes the remaining probability mass recursively
// across older entries, newest first: weight(i) = recentBias *
// (1-recentBias)^i for the i-th most recent entry. The weighted sum is
// divided by the sum of the weights actually used, so the mass left
// over once the finite window is exhausted is spread proportionally
// over the recorded entries.
func (w *survivalWindow) weightedAverage(recentBias float64) float64 {
	n := len(w.ratios)
	limit := n
	if !w.filled {
		limit = w.next
	}
	if limit == 0 {
		return 0
	}
	sum, weightSum, weight := 0.0, 0.0, recentBias
	idx := w.next
	for i := 0; i < limit; i++ {
		idx = (idx - 1 + n) % n
		sum += weight * w.ratios[idx]
		weightSum += weight
		weight *= 1 - recentBias
	}
	return sum / weightSum
}

// Heaplet is the per-mutator collector instance.
type Heaplet struct {
	heap   *Heap
	shapes *ShapeTable
	log    *gclog.Logger
	cfg    Config

	nursery       *Space
	ageing        []*Space
	ageingReserve []*Space
	oldspace      *Space
	oldReserve    *Space
	unused        *Space
	sharedOwn     *Space

	globalRoots *GlobalRoots
	tempRoots   *TemporaryRoots

	objectsBeingShared []Word

	preCollectionHooks  []HookFunc
	postCollectionHooks []HookFunc
	preSSBFlushHooks    []HookFunc
	postSSBFlushHooks   []HookFunc

	rememberedSet             *RememberedSet
	ssb                       *SSB
	candidateDeadFinalizables *finalizableList

	nurseryThreshold  uintptr
	oldspaceThreshold uintptr
	minorSurvival     *survivalWindow
	majorSurvival     *survivalWindow

	stats *Stats

	collectionEnabled bool

	convenienceAllocPointer uintptr
	convenienceLimit        uintptr

	usedState usedState
	sync      syncPrimitive

	prev, next *Heaplet
}

// NewHeaplet creates a heaplet: it wires up every space the heaplet
// owns, sized from cfg, and links the heaplet into the heap's
// in-use list.
func NewHeaplet(h *Heap) *Heaplet {
	cfg := h.cfg
	hl := &Heaplet{
		heap:                      h,
		shapes:                    h.shapes,
		log:                       h.log,
		cfg:                       cfg,
		nursery:                   newSpace("nursery", GenYoung),
		oldspace:                  newSpace("oldspace", GenOld),
		oldReserve:                newSpace("old-reserve", GenOld),
		unused:                    newSpace("unused", GenUnused),
		globalRoots:               newGlobalRoots(cfg.Debug),
		tempRoots:                 newTemporaryRoots(),
		rememberedSet:             newRememberedSet(),
		ssb:                       newSSB(int(cfg.SSBCapacityWords)),
		candidateDeadFinalizables: newFinalizableList(),
		nurseryThreshold:          cfg.InitialNursery,
		oldspaceThreshold:         cfg.MinOldspace,
		minorSurvival:             newSurvivalWindow(cfg.SurvivalWindow),
		majorSurvival:             newSurvivalWindow(cfg.SurvivalWindow),
		stats:                     newStats(),
		collectionEnabled:         true,
		usedState:                 stateInUse,
		sync:                      newSyncPrimitive(cfg.SyncTier),
	}
	for i := 0; i < cfg.AgeingSteps; i++ {
		hl.ageing = append(hl.ageing, newSpace("ageing", GenYoung))
		hl.ageingReserve = append(hl.ageingReserve, newSpace("ageing-reserve", GenYoung))
	}
	if cfg.ShareEnabled {
		hl.sharedOwn = newSpace("shared-own", GenShared)
	}

	hl.nursery.procureAllocationBlock(hl)
	hl.oldspace.procureAllocationBlock(hl)
	hl.convenienceAllocPointer = hl.nursery.allocBlock.base + hl.nursery.allocPtr
	hl.convenienceLimit = hl.nursery.allocBlock.base + hl.nursery.limit

	h.addHeaplet(hl)
	return hl
}

// allSpaces enumerates every space this heaplet owns, in a stable
// order used by setupSpaces/cleanSpaces and by heuristics accounting.
func (hl *Heaplet) allSpaces() []*Space {
	out := make([]*Space, 0, 6+2*len(hl.ageing))
	out = append(out, hl.nursery)
	out = append(out, hl.ageing...)
	out = append(out, hl.ageingReserve...)
	out = append(out, hl.oldspace, hl.oldReserve, hl.unused)
	if hl.sharedOwn != nil {
		out = append(out, hl.sharedOwn)
	}
	return out
}

// EnableCollection / DisableCollection let the mutator bracket
// critical sections that must not be interrupted by a forced
// collection.
func (hl *Heaplet) EnableCollection()  { hl.collectionEnabled = true }
func (hl *Heaplet) DisableCollection() { hl.collectionEnabled = false }

// shouldCollectNursery / shouldCollectOldspace are the should-collect
// thresholds AllocateSlowPath's default resolution consults.
func (hl *Heaplet) shouldCollectNursery() bool {
	return hl.nursery.usedSizeInBytes() >= uint64(hl.nurseryThreshold)
}

func (hl *Heaplet) shouldCollectOldspace() bool {
	return hl.oldspace.usedSizeInBytes() >= uint64(hl.oldspaceThreshold)
}

// AllocateSlowPath is the mutator-visible allocation slow path. size
// is in bytes and must already be a multiple of the minimum
// object alignment; userRequested distinguishes an explicit force_*
// action (fatal when collection is disabled) from the automatic
// resolution of ActionDefault (silently downgraded to a block change).
func (hl *Heaplet) AllocateSlowPath(size uintptr, action Action, userRequested bool) (pointer, limit uintptr) {
	minAlign := hl.cfg.MinObjectWords * wordSize
	if size > hl.cfg.BlockSize-payloadStart() {
		hl.log.Fatal("allocation request exceeds block payload")
	}
	if size%minAlign != 0 {
		hl.log.Fatal("allocation request is not a multiple of the minimum object alignment")
	}

	resolved := action
	if resolved == ActionDefault {
		switch {
		case hl.shouldCollectOldspace():
			resolved = ActionForceMajor
		case hl.shouldCollectNursery():
			resolved = ActionForceMinor
		default:
			resolved = ActionBlockChange
		}
	}
	if resolved == ActionForceEither {
		if hl.shouldCollectOldspace() {
			resolved = ActionForceMajor
		} else {
			resolved = ActionForceMinor
		}
	}

	if !hl.collectionEnabled && isMandatoryCollection(resolved) {
		if userRequested {
			hl.log.Fatal("forced collection requested while collection is disabled")
		}
		resolved = ActionBlockChange
	}

	switch resolved {
	case ActionBlockChange:
		hl.nursery.changeAllocationBlock(hl)
	case ActionForceMinor:
		collect(hl, KindMinor)
	case ActionForceMajor:
		collect(hl, KindMajor)
	case ActionForceGlobal:
		hl.heap.RequestGlobalCollection(hl)
	case ActionShare:
		hl.log.Fatal("share is not accepted through allocate_slow_path; use Share")
	}

	return hl.UpdateRuntimeFields()
}

func isMandatoryCollection(a Action) bool {
	switch a {
	case ActionForceMinor, ActionForceMajor, ActionForceEither, ActionForceGlobal, ActionShare:
		return true
	default:
		return false
	}
}

// RegisterPreCollectionHook / RegisterPostCollectionHook /
// RegisterPreSSBFlushHook / RegisterPostSSBFlushHook register
// collection-lifecycle callbacks. There is no deregistration handle
// beyond what the embedder itself tracks by closure identity, so
// these simply append.
func (hl *Heaplet) RegisterPreCollectionHook(fn HookFunc) {
	hl.preCollectionHooks = append(hl.preCollectionHooks, fn)
}
func (hl *Heaplet) RegisterPostCollectionHook(fn HookFunc) {
	hl.postCollectionHooks = append(hl.postCollectionHooks, fn)
}
func (hl *Heaplet) RegisterPreSSBFlushHook(fn HookFunc) {
	hl.preSSBFlushHooks = append(hl.preSSBFlushHooks, fn)
}
func (hl *Heaplet) RegisterPostSSBFlushHook(fn HookFunc) {
	hl.postSSBFlushHooks = append(hl.postSSBFlushHooks, fn)
}

// DestroyHeaplet tears down a heaplet: migrate shared-own content
// into the heap's shared space, finalize
// every surviving finalizable in the heaplet's non-shared spaces, and
// detach from the heap.
func DestroyHeaplet(hl *Heaplet) {
	if hl.sharedOwn != nil {
		hl.heap.lock()
		moveToFrom(hl.heap.shared, hl.sharedOwn, true, true, false)
		hl.heap.unlock()
	}

	for _, s := range hl.allSpaces() {
		if s.generation == GenShared || s.generation == GenUnused {
			continue
		}
		finalizeAllNoTrace(s)
	}

	for _, s := range hl.allSpaces() {
		for b := s.head; b != nil; {
			next := b.next
			blockRelease(hl.heap, b)
			b = next
		}
	}

	hl.heap.removeHeaplet(hl)
}
