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

package block

import "github.com/norsh-org/ledger-worker/cryptoutil"

// MerkleRoot computes the bottom-up pairwise Keccak-256 hash over ids, in
// order, duplicating an odd trailing node at each level. An empty input
// yields the empty string.
func MerkleRoot(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	level := make([]string, len(ids))
	copy(level, ids)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, cryptoutil.KeccakHex(level[i]+level[i+1]))
		}
		level = next
	}
	return level[0]
}
