// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sysmon_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/apix/sysmon"
)

func fixture(t *testing.T, name, content string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), name)
	require.Nil(t, ioutil.WriteFile(f, []byte(content), 0600))
	return f
}

func TestCPUTemp(t *testing.T) {
	p := sysmon.New()
	p.ThermalZonePath = fixture(t, "temp", "48500\n")
	v, err := p.CPUTemp()
	assert.Nil(t, err)
	assert.Equal(t, 48.5, v)
}

func TestCPUTempMalformed(t *testing.T) {
	p := sysmon.New()
	p.ThermalZonePath = fixture(t, "temp", "toasty\n")
	_, err := p.CPUTemp()
	assert.NotNil(t, err)
}

func TestCPUTempMissing(t *testing.T) {
	p := sysmon.New()
	p.ThermalZonePath = filepath.Join(t.TempDir(), "nonexistent")
	_, err := p.CPUTemp()
	assert.NotNil(t, err)
}

func TestLoadAvg(t *testing.T) {
	p := sysmon.New()
	p.LoadavgPath = fixture(t, "loadavg", "0.52 0.58 0.59 1/973 21825\n")
	load, err := p.LoadAvg()
	assert.Nil(t, err)
	assert.Equal(t, 0.52, load.Load1)
	assert.Equal(t, 0.58, load.Load5)
	assert.Equal(t, 0.59, load.Load15)
}

func TestLoadAvgMalformed(t *testing.T) {
	p := sysmon.New()
	p.LoadavgPath = fixture(t, "loadavg", "0.52 0.58\n")
	_, err := p.LoadAvg()
	assert.NotNil(t, err)

	p.LoadavgPath = fixture(t, "loadavg2", "a b c d\n")
	_, err = p.LoadAvg()
	assert.NotNil(t, err)
}
