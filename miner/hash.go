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

package miner

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/norsh-org/ledger-worker/ledgertypes"
)

// sha256Hex is the proof-of-work digest, deliberately distinct from
// cryptoutil's Keccak-256 (used for ids/merkle): the mining puzzle is
// specified over sha256, plain stdlib with no ecosystem alternative
// warranted for a single hash call.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// miningBase is the fixed prefix every candidate hash is computed over.
func miningBase(b ledgertypes.Block) string {
	var sb strings.Builder
	sb.WriteString(b.ID)
	sb.WriteString(strconv.FormatInt(b.Timestamp, 10))
	sb.WriteString(b.MerkleRoot)
	sb.WriteString(b.PreviousBlockHash)
	sb.WriteString(strconv.FormatInt(b.MiningReleaseTimestamp, 10))
	return sb.String()
}

// vectorString renders a nonce vector deterministically for hashing.
func vectorString(v []uint64) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, ",")
}

// incrementVector advances v by one, least-significant dimension first.
// A carry out of the most significant existing dimension grows the vector
// by one new leading dimension, per §4.6.
func incrementVector(v []uint64) []uint64 {
	out := make([]uint64, len(v))
	copy(out, v)
	for i := range out {
		out[i]++
		if out[i] != 0 {
			return out
		}
	}
	return append(out, 1)
}

// difficultyPrefix is the "0"*difficulty leading-zero string a candidate
// hash must match.
func difficultyPrefix(difficulty int) string {
	if difficulty <= 0 {
		return ""
	}
	return strings.Repeat("0", difficulty)
}
