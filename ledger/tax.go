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

package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/norsh-org/ledger-worker/ledgertypes"
)

// taxFields is the {elementTax, networkTax, totalTax, total} quadruple
// computeTax produces.
type taxFields struct {
	ElementTax decimal.Decimal
	NetworkTax decimal.Decimal
	TotalTax   decimal.Decimal
	Total      decimal.Decimal
}

// computeTax fills taxFields for a draft transaction. CAPTURE, REWARD and
// zero-volume transfers carry no tax: total equals volume. Otherwise each
// rate is the configured percent shifted two places (exact, no division
// rounding) and rounded half-up to decimals before being applied to volume.
func computeTax(txType ledgertypes.TransactionType, volume decimal.Decimal, elementTaxPercent *string, networkTaxPercent string, decimals int32) (taxFields, error) {
	if txType == ledgertypes.TransactionCapture || txType == ledgertypes.TransactionReward || volume.IsZero() {
		return taxFields{
			ElementTax: decimal.Zero,
			NetworkTax: decimal.Zero,
			TotalTax:   decimal.Zero,
			Total:      volume,
		}, nil
	}

	elementPercent := "0"
	if elementTaxPercent != nil && *elementTaxPercent != "" {
		elementPercent = *elementTaxPercent
	}
	elementPct, err := decimal.NewFromString(elementPercent)
	if err != nil {
		return taxFields{}, err
	}
	networkPct, err := decimal.NewFromString(networkTaxPercent)
	if err != nil {
		return taxFields{}, err
	}

	elementRate := elementPct.Shift(-2).Round(decimals)
	networkRate := networkPct.Shift(-2).Round(decimals)

	elementTax := volume.Mul(elementRate).Round(decimals)
	networkTax := volume.Mul(networkRate).Round(decimals)
	totalTax := elementTax.Add(networkTax)

	return taxFields{
		ElementTax: elementTax,
		NetworkTax: networkTax,
		TotalTax:   totalTax,
		Total:      volume.Add(totalTax),
	}, nil
}
