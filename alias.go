// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Symbolic aliases for GPIO lines.
//
// Boards name their user facing lines in the library config file, e.g.
//
// 	{
// 	    "aliases": {
// 	        "user_button": 72,
// 	        "user_led": 73
// 	    }
// 	}
//
// The config file defaults to /etc/apix.json and may be overridden with
// the APIX_CONFIG_FILE environment variable.

package apix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
)

// defaultConfigFile is the library config file consulted for aliases.
const defaultConfigFile = "/etc/apix.json"

func loadConfig() *config.Config {
	def := dict.New(dict.WithMap(map[string]interface{}{
		"config.file": defaultConfigFile,
	}))
	cfg := config.New(
		env.New(env.WithEnvPrefix("APIX_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", defaultConfigFile, json.NewDecoder()))
	return cfg
}

// LookupAlias returns the line offset assigned to a symbolic alias in the
// library config file.
//
// Aliases are case insensitive.
func LookupAlias(alias string) (int, error) {
	v, err := loadConfig().Get("aliases." + strings.ToLower(alias))
	if err != nil {
		return 0, fmt.Errorf("unknown line alias '%s'", alias)
	}
	return int(v.Int()), nil
}

// ParseLine resolves a line identifier, either a kernel GPIO number or a
// symbolic alias, to the line offset.
func ParseLine(arg string) (int, error) {
	if o, err := strconv.ParseUint(arg, 10, 16); err == nil {
		return int(o), nil
	}
	return LookupAlias(arg)
}
