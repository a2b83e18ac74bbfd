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

// Package ledgertypes holds the entity shapes persisted by the ledger
// worker: Element, Balance, Transaction, Block and DynamicSequence. These
// are plain documents; the store package is the only thing that knows how
// they are collected and indexed.
package ledgertypes

// ElementType enumerates the kinds of ledgered asset an Element represents.
type ElementType string

const (
	ElementTypeCoin  ElementType = "COIN"
	ElementTypeProxy ElementType = "PROXY"
)

// ElementStatus is the lifecycle state of an Element.
type ElementStatus string

const (
	ElementPending  ElementStatus = "PENDING"
	ElementEnabled  ElementStatus = "ENABLED"
	ElementDisabled ElementStatus = "DISABLED"
)

// ElementPolicy bundles the owner-configurable economics of an Element.
type ElementPolicy struct {
	TransactionTax *string `bson:"transactionTax,omitempty" json:"transactionTax,omitempty"`
}

// Element is a ledgered asset or proxy: id = hash(previousId ‖ hash ‖ timestamp).
// Insert-only; metadata/policy/monitoredNetworks may be patched by the owner.
type Element struct {
	ID                 string            `bson:"_id" json:"id"`
	PreviousID         string            `bson:"previousId" json:"previousId"`
	Owner              string            `bson:"owner" json:"owner"`
	Symbol             string            `bson:"symbol" json:"symbol"`
	Type               ElementType       `bson:"type" json:"type"`
	Decimals           int32             `bson:"decimals" json:"decimals"`
	InitialSupply      string            `bson:"initialSupply" json:"initialSupply"`
	TFO                string            `bson:"tfo" json:"tfo"`
	Hash               string            `bson:"hash" json:"hash"`
	PublicKey          string            `bson:"publicKey" json:"publicKey"`
	Signature          string            `bson:"signature" json:"signature"`
	Timestamp          int64             `bson:"timestamp" json:"timestamp"`
	Privacy            bool              `bson:"privacy" json:"privacy"`
	Status             ElementStatus     `bson:"status" json:"status"`
	Policy             ElementPolicy     `bson:"policy" json:"policy"`
	Metadata           map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	MonitoredNetworks  []string          `bson:"monitoredNetworks,omitempty" json:"monitoredNetworks,omitempty"`
	Version            int               `bson:"version" json:"version"`
}

// Balance is keyed by owner_element and created lazily with a seed amount
// when first observed.
type Balance struct {
	ID      string `bson:"_id" json:"id"`
	Owner   string `bson:"owner" json:"owner"`
	Element string `bson:"element" json:"element"`
	Amount  string `bson:"amount" json:"amount"` // decimal.Decimal, serialized as string for exact round-tripping
}

// TransactionType enumerates the kinds of ledger entries.
type TransactionType string

const (
	TransactionTransfer TransactionType = "TRANSFER"
	TransactionCapture  TransactionType = "CAPTURE"
	TransactionReward   TransactionType = "REWARD"
)

// Transaction is a confirmed ledger entry: id = hash(previousId ‖ hash).
// previousId comes from the element's sequence data field.
type Transaction struct {
	ID          string          `bson:"_id" json:"id"`
	PreviousID  string          `bson:"previousId" json:"previousId"`
	Type        TransactionType `bson:"type" json:"type"`
	From        string          `bson:"from" json:"from"`
	To          string          `bson:"to" json:"to"`
	Element     string          `bson:"element" json:"element"`
	Volume      string          `bson:"volume" json:"volume"`
	Nonce       string          `bson:"nonce" json:"nonce"`
	Hash        string          `bson:"hash" json:"hash"`
	PublicKey   string          `bson:"publicKey" json:"publicKey"`
	Signature   string          `bson:"signature" json:"signature"`
	Timestamp   int64           `bson:"timestamp" json:"timestamp"`
	Shard       int64           `bson:"shard" json:"shard"`
	Ledger      string          `bson:"ledger" json:"ledger"`
	Block       int64           `bson:"block" json:"block"`
	Confirmed   bool            `bson:"confirmed" json:"confirmed"`
	Privacy     bool            `bson:"privacy" json:"privacy"`
	Version     int             `bson:"version" json:"version"`
	ElementTax  string          `bson:"elementTax" json:"elementTax"`
	NetworkTax  string          `bson:"networkTax" json:"networkTax"`
	TotalTax    string          `bson:"totalTax" json:"totalTax"`
	Total       string          `bson:"total" json:"total"`
	Link        string          `bson:"link,omitempty" json:"link,omitempty"`
	Metadata    map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// BlockTransactionRef is the summary of a transaction embedded into its
// containing Block.
type BlockTransactionRef struct {
	ID      string  `bson:"id" json:"id"`
	Ledger  string  `bson:"ledger" json:"ledger"`
	Element string  `bson:"element" json:"element"`
	Tax     string  `bson:"tax" json:"tax"`
	Privacy bool    `bson:"privacy" json:"privacy"`
	Volume  *string `bson:"volume,omitempty" json:"volume,omitempty"`
}

// Block is a time-bucketed window of confirmed transactions; it stays open
// until the next window's block is opened, which closes it.
// number = floor(now_ms / windowMs); height is a monotonic ordinal
// independent of wall clock.
type Block struct {
	ID                     string                `bson:"_id" json:"id"`
	PreviousID             string                `bson:"previousId" json:"previousId"`
	Number                 int64                 `bson:"number" json:"number"`
	Height                 int64                 `bson:"height" json:"height"`
	Closed                 bool                  `bson:"closed" json:"closed"`
	Mined                  bool                  `bson:"mined" json:"mined"`
	Timestamp              int64                 `bson:"timestamp" json:"timestamp"`
	CloseTimestamp         int64                 `bson:"closeTimestamp,omitempty" json:"closeTimestamp,omitempty"`
	MiningReleaseTimestamp int64                 `bson:"miningReleaseTimestamp,omitempty" json:"miningReleaseTimestamp,omitempty"`
	MiningEndTimestamp     int64                 `bson:"miningEndTimestamp,omitempty" json:"miningEndTimestamp,omitempty"`
	PreviousBlockHash      string                `bson:"previousBlockHash,omitempty" json:"previousBlockHash,omitempty"`
	BlockHash              string                `bson:"blockHash,omitempty" json:"blockHash,omitempty"`
	MerkleRoot             string                `bson:"merkleRoot,omitempty" json:"merkleRoot,omitempty"`
	Difficulty             int                   `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	TotalFee               string                `bson:"totalFee,omitempty" json:"totalFee,omitempty"`
	Nonces                 []uint64              `bson:"nonces,omitempty" json:"nonces,omitempty"`
	Transactions           []BlockTransactionRef `bson:"transactions" json:"transactions"`
	Miner                  string                `bson:"miner,omitempty" json:"miner,omitempty"`
}

// DynamicSequence is a per-key monotonic counter with an auxiliary string
// payload, lazily created with sequence=0.
type DynamicSequence struct {
	ID       string `bson:"_id" json:"id"`
	Sequence int64  `bson:"sequence" json:"sequence"`
	Data     string `bson:"data,omitempty" json:"data,omitempty"`
}
