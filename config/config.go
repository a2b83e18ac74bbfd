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

// Package config loads the ledger worker's TOML configuration, mirroring
// cmd/ranger/config.go's tomlSettings/loadConfig convention.
package config

import (
	"bufio"
	"errors"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
)

// Defaults holds the timing/pool knobs recognized by the core, with the
// documented fallback values.
type Defaults struct {
	SemaphoreLockTimeoutMs  int64 `toml:"semaphoreLockTimeoutMs"`
	ThreadInitialBackoffMs  int64 `toml:"threadInitialBackoffMs"`
	ThreadMaxBackoffMs      int64 `toml:"threadMaxBackoffMs"`
	MessagingTtlMs          int64 `toml:"messagingTtlMs"`
	QueueConsumerThreadPool int   `toml:"queueConsumerThreadPool"`
}

// NetworkPolicy holds the chain-wide economic knobs.
type NetworkPolicy struct {
	NetworkTax string `toml:"networkTax"` // percent, e.g. "0.3"
}

// Genesis holds the key material Bootstrap uses to sign the genesis
// elements. Production key provisioning is outside this spec's scope.
type Genesis struct {
	NshTFO     string `toml:"nshTFO"`
	PublicKey  string `toml:"publicKey"`
	PrivateKey string `toml:"privateKey"`
}

// Ledger holds the §9 Open-Question flags turned into explicit switches.
type Ledger struct {
	// CaptureTaxOnChain, when true, issues an internal CAPTURE transaction
	// for totalTax in the same balance-lock scope as the transfer, so the
	// fee is actually deducted on-chain. When false (default), mirrors the
	// documented current behavior: tax is computed and recorded but only
	// volume is deducted from the sender.
	CaptureTaxOnChain bool `toml:"captureTaxOnChain"`
}

// Balance holds the balance-service's documented demonstration behavior.
type Balance struct {
	// SeedAmount is the amount BalanceService.get synthesizes for an absent
	// balance. Production deployments should set this to "0".
	SeedAmount string `toml:"seedAmount"`
}

// Kafka holds queue transport connection settings.
type Kafka struct {
	Brokers       []string `toml:"brokers"`
	RequestTopic  string   `toml:"requestTopic"`
	DeadLetterTopic string `toml:"deadLetterTopic"`
	ConsumerGroup string   `toml:"consumerGroup"`
}

// Mongo holds document store connection settings.
type Mongo struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// Redis holds cache connection settings.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Config is the full recognized configuration surface.
type Config struct {
	Defaults      Defaults      `toml:"defaults"`
	NetworkPolicy NetworkPolicy `toml:"networkPolicy"`
	Genesis       Genesis       `toml:"genesis"`
	Ledger        Ledger        `toml:"ledger"`
	Balance       Balance       `toml:"balance"`
	Kafka         Kafka         `toml:"kafka"`
	Mongo         Mongo         `toml:"mongo"`
	Redis         Redis         `toml:"redis"`
}

// Default returns the documented fallback configuration (§6).
func Default() Config {
	return Config{
		Defaults: Defaults{
			SemaphoreLockTimeoutMs:  30000,
			ThreadInitialBackoffMs:  20,
			ThreadMaxBackoffMs:      2000,
			MessagingTtlMs:          600000,
			QueueConsumerThreadPool: 20,
		},
		NetworkPolicy: NetworkPolicy{NetworkTax: "0.3"},
		Ledger:        Ledger{CaptureTaxOnChain: false},
		Balance:       Balance{SeedAmount: "10000"},
		Kafka: Kafka{
			RequestTopic:    "ledger-requests",
			DeadLetterTopic: "ledger-requests-dlq",
			ConsumerGroup:   "ledger-worker",
		},
		Mongo: Mongo{Database: "ledger"},
	}
}

// tomlSettings mirrors cmd/ranger/config.go: TOML keys use the same names
// as the Go struct tags, with a helpful error on unrecognized fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) {
			link = ", see the config.Config struct for available fields"
		}
		return errors.New("field '" + field + "' is not defined in " + rt.String() + link)
	},
}

// Load reads and merges a TOML file onto the documented defaults.
func Load(file string) (Config, error) {
	cfg := Default()
	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return cfg, errors.New(file + ", " + err.Error())
		}
		return cfg, err
	}
	return cfg, nil
}
