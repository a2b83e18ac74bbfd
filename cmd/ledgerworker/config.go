// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"io"
	"os"

	"github.com/naoina/toml"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh-org/ledger-worker/config"
)

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

// makeConfig loads the documented defaults, then overlays a config file
// when --config is given, mirroring cmd/ranger/config.go's makeConfigRanger.
func makeConfig(ctx *cli.Context) config.Config {
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		cfg, err := config.Load(file)
		if err != nil {
			logger.Crit("failed to load config file", "file", file, "err", err)
		}
		return cfg
	}
	return config.Default()
}

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Flags:       []cli.Flag{configFileFlag},
	Category:    "MISCELLANEOUS COMMANDS",
	Description: "The dumpconfig command shows the fully resolved configuration.",
}

func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	out, err := toml.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, string(out))
	return err
}
