// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import "sync"

// condPrimitive is the preferred tier of the synchronization shim: a
// standard mutex plus condition variable. newSyncPrimitive returns it
// for SyncTierAuto and SyncTierCond, and as the fallback for
// SyncTierUnix when eventfd isn't available, since sync.Cond never
// needs a platform-specific fallback the way raw pthread bindings do.
type condPrimitive struct {
	mu    sync.Mutex
	cond  *sync.Cond
	woken bool
}

func newCondPrimitive() *condPrimitive {
	p := &condPrimitive{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *condPrimitive) block() {
	p.mu.Lock()
	for !p.woken {
		p.cond.Wait()
	}
	p.woken = false
	p.mu.Unlock()
}

func (p *condPrimitive) wake() {
	p.mu.Lock()
	p.woken = true
	p.mu.Unlock()
	p.cond.Signal()
}
