// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRememberedSetInsertDedup(t *testing.T) {
	s := newRememberedSet()
	s.Insert(Word(8))
	s.Insert(Word(8))
	s.Insert(Word(16))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(Word(8)))
	assert.True(t, s.Contains(Word(16)))
	assert.False(t, s.Contains(Word(24)))
}

func TestRememberedSetRemoveAndReinsert(t *testing.T) {
	s := newRememberedSet()
	s.Insert(Word(8))
	s.Remove(Word(8))
	assert.False(t, s.Contains(Word(8)))
	assert.Equal(t, 0, s.Len())
	s.Insert(Word(8))
	assert.True(t, s.Contains(Word(8)))
}

func TestRememberedSetGrows(t *testing.T) {
	s := newRememberedSet()
	for i := 0; i < 100; i++ {
		s.Insert(Word(8 * (i + 1)))
	}
	assert.Equal(t, 100, s.Len())
	for i := 0; i < 100; i++ {
		assert.True(t, s.Contains(Word(8*(i+1))))
	}
}

func TestRememberedSetRebuild(t *testing.T) {
	s := newRememberedSet()
	s.Insert(Word(8))
	s.Insert(Word(16))
	s.Insert(Word(24))

	s.Rebuild(func(w Word) (Word, bool) {
		if w == Word(16) {
			return 0, false
		}
		if w == Word(24) {
			return Word(240), true
		}
		return w, true
	})

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(Word(8)))
	assert.False(t, s.Contains(Word(16)))
	assert.True(t, s.Contains(Word(240)))
	assert.False(t, s.Contains(Word(24)))
}
