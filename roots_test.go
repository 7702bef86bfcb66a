// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copygc/internal/gclog"
)

func TestGlobalRootsRegisterDeregister(t *testing.T) {
	g := newGlobalRoots(false)
	log := gclog.New(nil)

	slots := []Word{1, 2, 3}
	h := g.Register(log, slots)

	var seen []Word
	g.ForEachSlot(func(slot *Word) { seen = append(seen, *slot) })
	assert.Equal(t, slots, seen)

	g.Deregister(h)
	seen = nil
	g.ForEachSlot(func(slot *Word) { seen = append(seen, *slot) })
	assert.Empty(t, seen)
}

func TestTemporaryRootsPushPopHeight(t *testing.T) {
	tr := newTemporaryRoots()
	tr.Push([]Word{1})
	tr.Push([]Word{2, 3})
	require.Equal(t, 2, tr.Height())

	tr.SetHeight(1)
	var seen []Word
	tr.ForEachSlot(func(slot *Word) { seen = append(seen, *slot) })
	assert.Equal(t, []Word{1}, seen)

	tr.Pop()
	assert.Equal(t, 0, tr.Height())

	tr.Push([]Word{5})
	tr.Empty()
	assert.Equal(t, 0, tr.Height())
}
