// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

// Share migrates the subgraph reachable from *slot into the heap's
// global shared space. If *slot is already immortal or shared, this
// is a no-op.
func Share(hl *Heaplet, slot *Word) {
	if !hl.cfg.ShareEnabled {
		hl.log.Fatal("share called but sharing is disabled")
	}
	g := hl.heap.generationOf(*slot)
	if g != GenYoung && g != GenOld {
		return
	}

	hl.objectsBeingShared = append(hl.objectsBeingShared, *slot)
	collect(hl, KindShare)
	*slot = hl.objectsBeingShared[0]
	hl.objectsBeingShared = hl.objectsBeingShared[:0]

	followUp := KindMinor
	if hl.oldspace.scavengedFrom {
		followUp = KindMajor
	}
	collect(hl, followUp)
}
