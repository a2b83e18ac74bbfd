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
	"context"
	"encoding/json"

	"github.com/norsh-org/ledger-worker/dispatch"
	"github.com/norsh-org/ledger-worker/element"
	"github.com/norsh-org/ledger-worker/ledger"
	"github.com/norsh-org/ledger-worker/result"
)

// registerHandlers binds every envelope route the worker recognizes to its
// underlying CORE service call, per §6's requestClassName/method pairs.
func registerHandlers(d *dispatch.Dispatcher, elements *element.Service, ledgerSvc *ledger.Service) {
	d.Register("Element", "POST", createElementHandler(elements))
	d.Register("ElementMetadata", "PUT", setMetadataHandler(elements, ledgerSvc))
	d.Register("Transaction", "POST", createTransferHandler(ledgerSvc))
}

func createElementHandler(elements *element.Service) dispatch.Handler {
	return func(ctx context.Context, raw json.RawMessage) (result.Response, error) {
		var dto element.CreateRequest
		if err := json.Unmarshal(raw, &dto); err != nil {
			return result.Err(result.ERROR, "malformed request body", nil), nil
		}
		return elements.CreateElement(ctx, dto)
	}
}

func setMetadataHandler(elements *element.Service, ledgerSvc *ledger.Service) dispatch.Handler {
	return func(ctx context.Context, raw json.RawMessage) (result.Response, error) {
		var dto element.SetMetadataRequest
		if err := json.Unmarshal(raw, &dto); err != nil {
			return result.Err(result.ERROR, "malformed request body", nil), nil
		}
		if ct := dto.CaptureTransfer; ct != nil {
			dto.CaptureTx = func() (result.Response, error) {
				return ledgerSvc.CreateTransfer(ctx, ledger.TransferRequest{
					PublicKey: ct.PublicKey,
					Signature: ct.Signature,
					Element:   ct.Element,
					To:        ct.To,
					Volume:    ct.Volume,
					Nonce:     ct.Nonce,
					Hash:      ct.Hash,
				}, nil)
			}
		}
		return elements.SetMetadata(ctx, dto)
	}
}

func createTransferHandler(ledgerSvc *ledger.Service) dispatch.Handler {
	return func(ctx context.Context, raw json.RawMessage) (result.Response, error) {
		var dto ledger.TransferRequest
		if err := json.Unmarshal(raw, &dto); err != nil {
			return result.Err(result.ERROR, "malformed request body", nil), nil
		}
		return ledgerSvc.CreateTransfer(ctx, dto, nil)
	}
}
