// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package copygc

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copygc/internal/gclog"
)

// TestOverlappingBrokenHeartTypeCodeAborts verifies that registering
// a headerful shape whose type code collides with the reserved
// broken-heart code aborts the process
// fatally. gclog.Logger.Fatal calls os.Exit, so this re-execs the
// test binary in a child process and inspects its exit status, the
// same crasher-test pattern the standard library's own os/exec tests
// use for functions that cannot return.
func TestOverlappingBrokenHeartTypeCodeAborts(t *testing.T) {
	if os.Getenv("COPYGC_CRASH_TEST") == "1" {
		code := brokenHeartTypeCode
		table := NewShapeTable(gclog.New(nil))
		table.AddHeaderfulNonFinalizable(&Shape{
			Name:              "colliding",
			TypeCode:          &code,
			ObjectHasShape:    func(h uintptr) bool { return h == code },
			ObjectSizeInBytes: func(uintptr) uintptr { return 2 * wordSize },
			ObjectCopy:        func(dstMem []byte, dstOff uintptr, srcMem []byte, srcOff, oldSize uintptr) uintptr { return oldSize },
			ObjectUpdateFields: func(c *Collection, mem []byte, off uintptr) uintptr {
				return 2 * wordSize
			},
		})
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestOverlappingBrokenHeartTypeCodeAborts")
	cmd.Env = append(os.Environ(), "COPYGC_CRASH_TEST=1")
	err := cmd.Run()
	require.Error(t, err)
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	assert.False(t, exitErr.Success())
}
