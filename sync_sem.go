// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// semPrimitive is the final fallback tier of the synchronization
// shim: an anonymous semaphore, used here via
// golang.org/x/sync/semaphore.Weighted on
// platforms (or embedders) that want no dependency on a platform
// condition variable at all, such as when the heaplet's blocking
// primitive must be safely shareable across a process that forbids
// direct OS-level blocking primitives.
type semPrimitive struct {
	sem *semaphore.Weighted
}

func newSemPrimitive() *semPrimitive {
	s := semaphore.NewWeighted(1)
	_ = s.Acquire(context.Background(), 1)
	return &semPrimitive{sem: s}
}

func (p *semPrimitive) block() {
	_ = p.sem.Acquire(context.Background(), 1)
}

func (p *semPrimitive) wake() {
	p.sem.Release(1)
}
