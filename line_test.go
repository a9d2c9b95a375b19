// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Tests run against a fake sysfs tree so they pass without GPIO
// hardware.  Edge delivery requires real hardware and is not covered
// here.

package apix

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSysfs points sysfsRoot at a fake tree with the given lines
// pre-created, as the kernel would on export.
func fakeSysfs(t *testing.T, offsets ...int) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"export", "unexport"} {
		require.Nil(t, ioutil.WriteFile(filepath.Join(root, name), nil, 0660))
	}
	for _, o := range offsets {
		dir := filepath.Join(root, "gpio"+strconv.Itoa(o))
		require.Nil(t, os.Mkdir(dir, 0770))
		for _, attr := range []string{"value", "direction", "edge", "active_low"} {
			path := filepath.Join(dir, attr)
			require.Nil(t, ioutil.WriteFile(path, []byte{'0'}, 0660))
			// WriteFile permissions are subject to umask, but the export
			// wait checks for group write, as on real sysfs.
			require.Nil(t, os.Chmod(path, 0660))
		}
	}
	oldRoot := sysfsRoot
	sysfsRoot = root
	t.Cleanup(func() {
		sysfsRoot = oldRoot
	})
	return root
}

func attr(t *testing.T, root string, offset int, name string) string {
	t.Helper()
	b, err := ioutil.ReadFile(filepath.Join(root, "gpio"+strconv.Itoa(offset), name))
	require.Nil(t, err)
	return string(b)
}

func TestRequestInput(t *testing.T) {
	root := fakeSysfs(t, 72)
	l, err := Request(72, InputRising)
	require.Nil(t, err)
	defer l.Close()

	assert.Equal(t, 72, l.Offset())
	assert.Equal(t, "in", attr(t, root, 72, "direction")[:2])
	assert.Equal(t, "rising", attr(t, root, 72, "edge"))
	v, err := l.Value()
	assert.Nil(t, err)
	assert.Equal(t, Low, v)
}

func TestRequestOutput(t *testing.T) {
	root := fakeSysfs(t, 73)
	l, err := Request(73, OutputHigh)
	require.Nil(t, err)
	defer l.Close()

	assert.Equal(t, "high", attr(t, root, 73, "direction"))
	assert.Equal(t, High, l.Shadow())

	require.Nil(t, l.SetValue(Low))
	assert.Equal(t, "0", attr(t, root, 73, "value"))
	require.Nil(t, l.Toggle())
	assert.Equal(t, "1", attr(t, root, 73, "value"))
	assert.Equal(t, High, l.Shadow())
}

func TestRequestInvalid(t *testing.T) {
	fakeSysfs(t)
	_, err := Request(-1, InputRising)
	assert.NotNil(t, err)
	_, err = Request(72, Mode(42))
	assert.NotNil(t, err)
}

func TestRequestUnexported(t *testing.T) {
	// the line never appears in the tree, as if the export failed, so
	// the request must fail rather than hang.
	root := fakeSysfs(t)
	_, err := Request(99, InputRising)
	assert.NotNil(t, err)
	// the freshly exported line must be rolled back on the way out.
	assert.Equal(t, "99", attr0(t, root, "unexport"))
}

func TestClose(t *testing.T) {
	root := fakeSysfs(t, 72)
	l, err := Request(72, InputRising)
	require.Nil(t, err)

	assert.Nil(t, l.Close())
	assert.Equal(t, "72", attr0(t, root, "unexport"))
	// and again - Close is idempotent.
	assert.Nil(t, l.Close())

	_, err = l.Value()
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, l.SetValue(High))
}

func TestCloseNil(t *testing.T) {
	var l *Line
	assert.Nil(t, l.Close())
}

func TestCloseShared(t *testing.T) {
	root := fakeSysfs(t, 72)
	l, err := Request(72, InputRising, Shared())
	require.Nil(t, err)

	assert.Nil(t, l.Close())
	// shared lines stay exported for the other users.
	assert.Equal(t, "", attr0(t, root, "unexport"))
}

func TestSetActive(t *testing.T) {
	root := fakeSysfs(t, 72)
	l, err := Request(72, InputRising)
	require.Nil(t, err)
	defer l.Close()

	require.Nil(t, l.SetActive(ActiveLow))
	assert.Equal(t, "1", attr(t, root, 72, "active_low"))
	require.Nil(t, l.SetActive(ActiveHigh))
	assert.Equal(t, "0", attr(t, root, 72, "active_low"))
}

func TestWaitEdgeTimeout(t *testing.T) {
	fakeSysfs(t, 72)
	l, err := Request(72, InputRising)
	require.Nil(t, err)
	defer l.Close()

	// a regular file never reports POLLPRI, so this exercises the
	// timeout path.
	assert.Equal(t, ErrTimeout, l.WaitEdge(10*time.Millisecond))
}

func TestWaitEdgeClosed(t *testing.T) {
	fakeSysfs(t, 72)
	l, err := Request(72, InputRising)
	require.Nil(t, err)
	l.Close()
	assert.Equal(t, ErrClosed, l.WaitEdge(time.Millisecond))
}

func attr0(t *testing.T, root, name string) string {
	t.Helper()
	b, err := ioutil.ReadFile(filepath.Join(root, name))
	require.Nil(t, err)
	return string(b)
}
