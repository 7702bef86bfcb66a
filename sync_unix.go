// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package copygc

import (
	"golang.org/x/sys/unix"
)

// unixEventPrimitive is the "fall back to POSIX equivalents" tier of
// the synchronization shim: a single eventfd used as a one-shot wake
// signal, read/written
// directly through golang.org/x/sys/unix rather than Go channels, for
// the case where an embedder wants the heaplet's blocking primitive
// to be visible as a pollable file descriptor alongside the host
// runtime's own event loop.
type unixEventPrimitive struct {
	fd int
}

func newUnixEventPrimitive() (*unixEventPrimitive, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &unixEventPrimitive{fd: fd}, nil
}

func (p *unixEventPrimitive) block() {
	var buf [8]byte
	for {
		n, err := unix.Read(p.fd, buf[:])
		if n == 8 && err == nil {
			return
		}
		if err != unix.EINTR {
			return
		}
	}
}

func (p *unixEventPrimitive) wake() {
	buf := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	for {
		_, err := unix.Write(p.fd, buf[:])
		if err != unix.EINTR {
			return
		}
	}
}

func (p *unixEventPrimitive) close() error {
	return unix.Close(p.fd)
}

// newUnixEventPrimitiveForTier is SyncTierUnix's constructor: it
// reports false (rather than an error) on eventfd failure so
// newSyncPrimitive can fall back to the condition-variable tier.
func newUnixEventPrimitiveForTier() (syncPrimitive, bool) {
	p, err := newUnixEventPrimitive()
	if err != nil {
		return nil, false
	}
	return p, true
}
