// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sysmon probes CPU temperature and load on embedded Linux
// hosts.
package sysmon

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
)

// Default probe paths.
const (
	DefaultThermalZonePath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultLoadavgPath     = "/proc/loadavg"
)

// Probe reads CPU state from the proc and sysfs files of the host.
type Probe struct {
	// ThermalZonePath is the temp attribute of the thermal zone to report.
	ThermalZonePath string
	// LoadavgPath is the loadavg file to report.
	LoadavgPath string
}

// Load holds the 1, 5 and 15 minute load averages.
type Load struct {
	Load1  float64 `json:"load_1m"`
	Load5  float64 `json:"load_5m"`
	Load15 float64 `json:"load_15m"`
}

// New creates a Probe reading the default paths.
func New() *Probe {
	return &Probe{
		ThermalZonePath: DefaultThermalZonePath,
		LoadavgPath:     DefaultLoadavgPath,
	}
}

// CPUTemp returns the thermal zone temperature in degrees Celsius.
func (p *Probe) CPUTemp() (float64, error) {
	b, err := ioutil.ReadFile(p.ThermalZonePath)
	if err != nil {
		return 0, err
	}
	// the kernel reports millidegrees
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed thermal zone temp: %w", err)
	}
	return float64(v) / 1000, nil
}

// LoadAvg returns the host load averages.
func (p *Probe) LoadAvg() (Load, error) {
	var load Load
	b, err := ioutil.ReadFile(p.LoadavgPath)
	if err != nil {
		return load, err
	}
	fields := strings.Fields(string(b))
	if len(fields) < 3 {
		return load, fmt.Errorf("malformed loadavg: %q", string(b))
	}
	vv := [3]float64{}
	for i := 0; i < 3; i++ {
		v, perr := strconv.ParseFloat(fields[i], 64)
		if perr != nil {
			return load, fmt.Errorf("malformed loadavg: %w", perr)
		}
		vv[i] = v
	}
	load.Load1, load.Load5, load.Load15 = vv[0], vv[1], vv[2]
	return load, nil
}
