// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package copygc

// newUnixEventPrimitiveForTier reports false on every non-unix build,
// since there is no eventfd to open; newSyncPrimitive falls back to
// the condition-variable tier.
func newUnixEventPrimitiveForTier() (syncPrimitive, bool) {
	return nil, false
}
