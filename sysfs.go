// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// sysfs plumbing for GPIO lines.

package apix

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"
	"time"
)

type edge string

const (
	edgeNone    edge = "none"
	edgeRising  edge = "rising"
	edgeFalling edge = "falling"
	edgeBoth    edge = "both"
)

// sysfsRoot is a variable to allow tests to redirect to a fake tree.
var sysfsRoot = "/sys/class/gpio"

func linePath(offset int, attr string) string {
	return fmt.Sprintf("%s/gpio%d/%s", sysfsRoot, offset, attr)
}

// export makes the line visible in sysfs.
//
// Returns true if the line was exported by this call, false if it was
// already exported.
func export(offset int) (bool, error) {
	file, err := os.OpenFile(sysfsRoot+"/export", os.O_WRONLY, os.ModeExclusive)
	if err != nil {
		return false, err
	}
	defer file.Close()
	_, err = file.WriteString(strconv.Itoa(offset))
	if e, ok := err.(*os.PathError); ok && e.Err == syscall.EBUSY {
		// EBUSY -> the line has already been exported
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// wait for the line to be exported on sysfs - can take > 100ms on
	// older kernels.
	return true, waitExported(offset)
}

func unexport(offset int) error {
	file, err := os.OpenFile(sysfsRoot+"/unexport", os.O_WRONLY, os.ModeExclusive)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(strconv.Itoa(offset))
	return err
}

// Wait for the sysfs GPIO files to become writable.
func waitExported(offset int) error {
	if err := waitWriteable(linePath(offset, "value")); err != nil {
		return err
	}
	return waitWriteable(linePath(offset, "direction"))
}

func waitWriteable(path string) error {
	try := 0
	for {
		fileInfo, err := os.Stat(path)
		if err == nil && fileInfo.Mode()&0x10 != 0 {
			return nil
		}
		try++
		if try > 10 {
			return errors.New("timeout waiting for export")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func setDirection(offset int, mode Mode) error {
	return writeAttr(linePath(offset, "direction"), mode.direction())
}

func setEdge(offset int, e edge) error {
	return writeAttr(linePath(offset, "edge"), string(e))
}

func setActiveLow(offset int, activeLow bool) error {
	v := "0"
	if activeLow {
		v = "1"
	}
	return writeAttr(linePath(offset, "active_low"), v)
}

func writeAttr(path, value string) error {
	file, err := os.OpenFile(path, os.O_RDWR, os.ModeExclusive)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(value)
	return err
}

func openValue(offset int) (*os.File, error) {
	return os.OpenFile(linePath(offset, "value"), os.O_RDWR, os.ModeExclusive)
}

func readLevel(f *os.File) (Level, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Low, err
	}
	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil {
		return Low, err
	}
	return buf[0] == '1', nil
}

func writeLevel(f *os.File, v Level) error {
	b := []byte{'0'}
	if v {
		b[0] = '1'
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := f.Write(b)
	return err
}
