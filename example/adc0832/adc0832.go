// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/warthog618/apix/adc0832"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

// This example reads both channels from an ADC0832 connected to the
// board by four data lines - CSZ, CLK, DI, and DO.  The default line
// assignments are defined in loadConfig, but can be altered via
// configuration (env, flag or config file).  The DI and DO may be tied
// to reduce the line count by one, though I prefer to keep the two
// separate to remove the chance of accidental conflict.
// All lines other than DO are outputs so do not run this example on a
// board where those lines serve other purposes.
func main() {
	cfg := loadConfig()
	tclk := cfg.MustGet("tclk").Duration()
	tset := cfg.MustGet("tset").Duration()
	if tset < tclk {
		tset = tclk
	}
	a, err := adc0832.New(
		tclk,
		tset,
		int(cfg.MustGet("clk").Int()),
		int(cfg.MustGet("csz").Int()),
		int(cfg.MustGet("di").Int()),
		int(cfg.MustGet("do").Int()))
	if err != nil {
		panic(err)
	}
	defer a.Close()
	ch0, err := a.Read(0)
	if err != nil {
		panic(err)
	}
	ch1, err := a.Read(1)
	if err != nil {
		panic(err)
	}
	fmt.Printf("ch0=0x%02x, ch1=0x%02x\n", ch0, ch1)
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"tclk": "2500ns",
		"tset": "2500ns", // should be at least tclk - enforced in main
		"clk":  25,
		"csz":  24,
		"di":   23,
		"do":   22,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		pflag.New(pflag.WithFlags(
			[]pflag.Flag{{Short: 'c', Name: "config-file"}})),
		env.New(env.WithEnvPrefix("ADC0832_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "adc0832.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
