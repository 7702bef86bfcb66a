// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copygc/internal/gclog"
)

// TestGlobalCollectionTerminates checks that a global collection
// request issued while K heaplets are in use eventually completes
// once every other heaplet has reached a safe point.
func TestGlobalCollectionTerminates(t *testing.T) {
	cfg := testConfig()
	shapes := newPairShapeTable()
	h := NewHeap(cfg, shapes, gclog.New(nil), DefaultAllocator{})

	const k = 4
	heaplets := make([]*Heaplet, k)
	for i := range heaplets {
		heaplets[i] = NewHeaplet(h)
	}

	stop := make(chan struct{})
	var workers sync.WaitGroup
	for _, hl := range heaplets[1:] {
		workers.Add(1)
		go func(hl *Heaplet) {
			defer workers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.SafePoint(hl)
				}
			}
		}(hl)
	}

	requested := make(chan struct{})
	go func() {
		h.RequestGlobalCollection(heaplets[0])
		close(requested)
	}()

	select {
	case <-requested:
	case <-time.After(5 * time.Second):
		close(stop)
		t.Fatal("global collection did not terminate")
	}
	close(stop)
	workers.Wait()

	h.mu.Lock()
	req := h.request
	inUse := len(h.inUse)
	notInUse := len(h.notInUse)
	h.mu.Unlock()

	assert.Equal(t, requestNone, req)
	require.Equal(t, k, inUse)
	assert.Equal(t, 0, notInUse)
}

// TestGlobalCollectionRepeatable checks that the heaplet performing a
// global collection (including the lone heaplet case, where it has no
// peer to wait on and collects immediately) is fully restored to
// inUse/stateInUse afterward, so a second, independent global
// collection request sees correct bookkeeping rather than
// mis-counting a heaplet that never came back from the first one.
func TestGlobalCollectionRepeatable(t *testing.T) {
	cfg := testConfig()
	shapes := newPairShapeTable()
	h := NewHeap(cfg, shapes, gclog.New(nil), DefaultAllocator{})
	hl := NewHeaplet(h)

	for i := 0; i < 3; i++ {
		h.RequestGlobalCollection(hl)

		h.mu.Lock()
		req := h.request
		inUse := len(h.inUse)
		notInUse := len(h.notInUse)
		state := hl.usedState
		h.mu.Unlock()

		assert.Equal(t, requestNone, req)
		require.Equal(t, 1, inUse)
		assert.Equal(t, 0, notInUse)
		assert.Equal(t, stateInUse, state)
	}
}
