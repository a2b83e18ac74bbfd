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

import (
	"github.com/shopspring/decimal"
)

// digitsOfIntegerPart returns the number of digits in d's integer part,
// with zero treated as one digit (so an empty/zero fee block still has
// difficulty 2).
func digitsOfIntegerPart(d decimal.Decimal) int {
	whole := d.Truncate(0).Abs()
	if whole.IsZero() {
		return 1
	}
	return len(whole.String())
}

// Difficulty is 2 * digitsOfIntegerPart(totalFee); 2 when totalFee is zero.
func Difficulty(totalFee decimal.Decimal) int {
	return digitsOfIntegerPart(totalFee) * 2
}
