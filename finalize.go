// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

// finalizableNode is one registration record: an intrusive
// doubly-linked-list node referring to the untagged address of an
// object whose shape declared a finalizer.
type finalizableNode struct {
	ptr        uintptr
	shape      *Shape
	prev, next *finalizableNode
}

// finalizableList is the intrusive list of finalizable-registration
// records belonging to a Space, and also backs the heaplet-level
// candidate-dead list used during finalization.
type finalizableList struct {
	head, tail *finalizableNode
	len        int
}

func newFinalizableList() *finalizableList { return &finalizableList{} }

func (l *finalizableList) register(ptr uintptr, shape *Shape) {
	n := &finalizableNode{ptr: ptr, shape: shape}
	n.prev = l.tail
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.len++
}

func (l *finalizableList) unlink(n *finalizableNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.len--
}

// appendAll splices other onto the end of l in O(1) and empties other.
func (l *finalizableList) appendAll(other *finalizableList) {
	if other.head == nil {
		return
	}
	if l.tail == nil {
		l.head = other.head
	} else {
		l.tail.next = other.head
		other.head.prev = l.tail
	}
	l.tail = other.tail
	l.len += other.len
	other.head, other.tail, other.len = nil, nil, 0
}

func (l *finalizableList) empty() bool { return l.head == nil }

func (l *finalizableList) snapshot() []*finalizableNode {
	out := make([]*finalizableNode, 0, l.len)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// RegisterFinalizable is the mutator-side half of object
// finalization: immediately after allocating an object of a
// finalizable shape, the embedder calls this so the object's
// containing space tracks it until it becomes unreachable, mirroring
// how runtime.SetFinalizer attaches a finalizer at the point of
// allocation rather than inferring it from the shape table alone.
func RegisterFinalizable(hl *Heaplet, ptr uintptr, shape *Shape) {
	b := hl.heap.blockOf(ptr)
	if b == nil {
		hl.log.Fatal("RegisterFinalizable: ptr is not a heap address")
	}
	b.space.finalizables.register(ptr, shape)
}

// runFinalizationPipeline drains c.hl's
// candidate-dead finalizables, found unreachable from roots by
// partitionFinalizables after scavenging, and invoke their finalizers exactly once
// each, re-tracing first when a complete-object finalizer is
// registered anywhere (so such finalizers observe consistent pointer
// fields). The collection driver (collect.go) loops this single pass
// while the to-be-finalized list keeps growing, the resurrection case
// §4.9 describes.
func runFinalizationPipeline(c *Collection) {
	hl := c.hl
	if hl.candidateDeadFinalizables.empty() {
		return
	}
	if !hl.shapes.HasCompleteFinalizer() {
		runQuickOnlyPass(hl)
	} else {
		runGeneralPass(c)
	}
}

// runQuickOnlyPass handles the case where no complete-object
// finalizer is registered anywhere: every dead finalizable can be
// finalized immediately without a second trace, since no finalizer
// needs pointer fields to be consistent.
func runQuickOnlyPass(hl *Heaplet) {
	list := hl.candidateDeadFinalizables
	n := list.head
	for n != nil {
		next := n.next
		shape := findQuickShape(hl.shapes, n.shape)
		list.unlink(n)
		shape.Finalize(n.ptr)
		n = next
	}
}

func findQuickShape(t *ShapeTable, want *Shape) *Shape {
	for _, s := range t.quickFinalizable {
		if s == want {
			return s
		}
	}
	return want
}

// runGeneralPass implements the four numbered steps of §4.9's general
// case.
func runGeneralPass(c *Collection) {
	hl := c.hl
	snap := hl.candidateDeadFinalizables.snapshot()

	// Step 2: make dead objects' pointer fields consistent with the
	// post-scavenge heap, without copying the dead object itself.
	for _, n := range snap {
		if n.shape.ObjectUpdateFields == nil {
			continue
		}
		if objectIsBrokenHeart(hl, n.ptr) {
			continue
		}
		n.shape.ObjectUpdateFields(c, memOf(hl.heap, n.ptr), offsetOf(hl.heap, n.ptr))
	}

	// Step 3: trace again so anything reachable only from a dead
	// finalizable's now-consistent fields survives.
	scavenge(c)

	// Step 4: anything still on the list is confirmed dead.
	n := hl.candidateDeadFinalizables.head
	for n != nil {
		next := n.next
		hl.candidateDeadFinalizables.unlink(n)
		n.shape.Finalize(n.ptr)
		n = next
	}
}

func objectIsBrokenHeart(hl *Heaplet, ptr uintptr) bool {
	mem, off := memOf(hl.heap, ptr), offsetOf(hl.heap, ptr)
	return readWord(mem, off) == brokenHeartTypeCode
}

func memOf(h *Heap, ptr uintptr) []byte {
	b := h.blockOf(ptr)
	return b.mem
}

func offsetOf(h *Heap, ptr uintptr) uintptr {
	b := h.blockOf(ptr)
	return ptr - b.base
}

// finalizeAllNoTrace finalizes every registered finalizable object in
// the given space without tracing, used at heaplet/heap destruction
// (§3 Lifecycles) where no collection runs.
func finalizeAllNoTrace(s *Space) {
	n := s.finalizables.head
	for n != nil {
		next := n.next
		s.finalizables.unlink(n)
		n.shape.Finalize(n.ptr)
		n = next
	}
}
