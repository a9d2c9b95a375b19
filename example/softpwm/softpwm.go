// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warthog618/apix"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

// This example dims the user LED by software PWM on its line.
// The line, PWM period and duty cycle default to the values in
// loadConfig, but can be altered via configuration (env, flag or config
// file).
//
// Software PWM is only suitable for slow loads like LEDs - the timing
// jitter from sleeping is far too coarse for servos.
func main() {
	cfg := loadConfig()
	offset, err := apix.ParseLine(cfg.MustGet("line").String())
	if err != nil {
		panic(err)
	}
	period := cfg.MustGet("period").Duration()
	duty := cfg.MustGet("duty").Float()
	if duty < 0 || duty > 1 {
		panic("duty must be in the range 0 to 1")
	}
	on := time.Duration(float64(period) * duty)
	off := period - on

	led, err := apix.Request(offset, apix.OutputLow)
	if err != nil {
		panic(err)
	}
	defer led.Close()

	// capture exit signals to ensure the line is released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	for {
		led.SetValue(apix.High)
		select {
		case <-time.After(on):
		case <-quit:
			return
		}
		led.SetValue(apix.Low)
		select {
		case <-time.After(off):
		case <-quit:
			return
		}
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"line":   "user_led",
		"period": "10ms",
		"duty":   0.3,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		pflag.New(pflag.WithFlags(
			[]pflag.Flag{{Short: 'c', Name: "config-file"}})),
		env.New(env.WithEnvPrefix("SOFTPWM_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "softpwm.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
