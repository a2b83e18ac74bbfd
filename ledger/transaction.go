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

// Package ledger is the TransactionService: validates a transfer request,
// computes tax, chains it into the sender element's ledger bucket under
// the sender-balance then element-sequence locks, updates both balances,
// and enqueues it into the current block.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/norsh-org/ledger-worker/balance"
	"github.com/norsh-org/ledger-worker/block"
	"github.com/norsh-org/ledger-worker/cryptoutil"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/result"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

const weekMs = int64(7 * 24 * 60 * 60 * 1000)

var logger = log.NewModuleLogger(log.Ledger)

// ElementReader is the narrow slice of ElementService the ledger core
// needs, kept separate so this package never imports the element package
// (which itself will depend on sequence/lock, the same as this one).
type ElementReader interface {
	FindByID(ctx context.Context, id string) (ledgertypes.Element, bool, error)
}

// TransferRequest is the inbound DTO for createTransfer. It is
// self-validating: Validate checks structural preconditions and the
// signature over Hash, independent of any store lookup.
type TransferRequest struct {
	PublicKey string
	Signature string
	Element   string
	To        string
	Volume    string
	Nonce     string
	Hash      string
	Metadata  map[string]string
}

// Validate checks the dto's structural preconditions and signature.
func (r TransferRequest) Validate() error {
	if r.PublicKey == "" || r.Element == "" || r.To == "" {
		return errors.New("ledger: publicKey, element and to are required")
	}
	if r.Hash == "" || r.Signature == "" {
		return errors.New("ledger: hash and signature are required")
	}
	volume, err := decimal.NewFromString(r.Volume)
	if err != nil {
		return fmt.Errorf("ledger: invalid volume: %w", err)
	}
	if !volume.IsPositive() {
		return errors.New("ledger: volume must be positive")
	}
	ok, err := cryptoutil.Verify(r.PublicKey, r.Signature, []byte(r.Hash))
	if err != nil {
		return fmt.Errorf("ledger: signature verify: %w", err)
	}
	if !ok {
		return errors.New("ledger: signature does not verify")
	}
	return nil
}

// Service is the TransactionService.
type Service struct {
	db          store.Store
	elements    ElementReader
	balances    *balance.Service
	sequences   *sequence.Store
	blocks      *block.Service
	sem         *lock.Semaphore
	networkTax  string // percent, e.g. "0.3"
	captureTax  bool
	lockTimeout time.Duration
	now         func() time.Time
}

// New builds a TransactionService.
func New(db store.Store, elements ElementReader, balances *balance.Service, sequences *sequence.Store, blocks *block.Service, sem *lock.Semaphore, networkTaxPercent string, captureTaxOnChain bool, lockTimeout time.Duration) *Service {
	return &Service{
		db:          db,
		elements:    elements,
		balances:    balances,
		sequences:   sequences,
		blocks:      blocks,
		sem:         sem,
		networkTax:  networkTaxPercent,
		captureTax:  captureTaxOnChain,
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

func weekOf(timestampMs int64) int64 {
	return timestampMs / weekMs
}

func ledgerCollection(shard int64) string {
	return fmt.Sprintf("ledger_%d", shard)
}

// CreateTransfer runs the full transfer algorithm (§4.4) and returns a
// Response; only infrastructure failures (store/cache/lock unreachable)
// are returned as a Go error.
func (s *Service) CreateTransfer(ctx context.Context, dto TransferRequest, txMutator func(*ledgertypes.Transaction)) (result.Response, error) {
	if err := dto.Validate(); err != nil {
		return result.Err(result.ERROR, err.Error(), nil), nil
	}

	owner, err := cryptoutil.OwnerFromPublicKey(dto.PublicKey)
	if err != nil {
		return result.Err(result.ERROR, "invalid publicKey", nil), nil
	}

	nowMs := s.now().UnixNano() / int64(time.Millisecond)
	shard := weekOf(nowMs)
	ledgerColl := ledgerCollection(shard)

	var existing ledgertypes.Transaction
	found, err := s.db.FindOne(ctx, ledgerColl, store.M{"hash": dto.Hash}, nil, &existing)
	if err != nil {
		return result.Response{}, err
	}
	if found {
		return result.Err(result.EXISTS, "transaction already exists", nil), nil
	}

	element, found, err := s.elements.FindByID(ctx, dto.Element)
	if err != nil {
		return result.Response{}, err
	}
	if !found {
		return result.Err(result.ERROR, "Element not found", nil), nil
	}

	volume, err := decimal.NewFromString(dto.Volume)
	if err != nil {
		return result.Err(result.ERROR, "invalid volume", nil), nil
	}
	volume = volume.Abs()

	draft := ledgertypes.Transaction{
		Type:      ledgertypes.TransactionTransfer,
		From:      owner,
		To:        dto.To,
		Element:   element.ID,
		Volume:    volume.String(),
		Nonce:     dto.Nonce,
		Hash:      dto.Hash,
		PublicKey: dto.PublicKey,
		Signature: dto.Signature,
		Timestamp: nowMs,
		Shard:     shard,
		Ledger:    ledgerColl,
		Privacy:   element.Privacy,
		Version:   1,
		Metadata:  dto.Metadata,
	}

	tax, err := computeTax(draft.Type, volume, element.Policy.TransactionTax, s.networkTax, element.Decimals)
	if err != nil {
		return result.Err(result.ERROR, "tax computation failed", nil), nil
	}
	draft.ElementTax = tax.ElementTax.String()
	draft.NetworkTax = tax.NetworkTax.String()
	draft.TotalTax = tax.TotalTax.String()
	draft.Total = tax.Total.String()

	if txMutator != nil {
		txMutator(&draft)
	}

	senderLockName := balance.BuildID(owner, element.ID)
	insufficient := false
	requiredAmount := volume

	_, err = s.sem.Execute(ctx, senderLockName, s.lockTimeout, func(ctx context.Context) (interface{}, error) {
		senderBalance, err := s.balances.Get(ctx, owner, element.ID)
		if err != nil {
			return nil, err
		}
		has, err := balance.HasBalance(senderBalance, requiredAmount)
		if err != nil {
			return nil, err
		}
		if !has {
			insufficient = true
			return nil, nil
		}

		var captureDraft ledgertypes.Transaction
		haveCapture := false

		_, err = s.sem.Execute(ctx, element.ID, s.lockTimeout, func(ctx context.Context) (interface{}, error) {
			if err := s.appendToLedger(ctx, ledgerColl, element.ID, &draft); err != nil {
				return nil, err
			}

			if !s.captureTax || !tax.TotalTax.IsPositive() {
				return nil, nil
			}

			captureDraft = ledgertypes.Transaction{
				Type:      ledgertypes.TransactionCapture,
				From:      owner,
				To:        element.Owner,
				Element:   element.ID,
				Volume:    tax.TotalTax.String(),
				Hash:      cryptoutil.KeccakHex(draft.ID, "capture"),
				Timestamp: nowMs,
				Shard:     shard,
				Ledger:    ledgerColl,
				Privacy:   element.Privacy,
				Version:   1,
			}
			captureTaxFields, err := computeTax(captureDraft.Type, tax.TotalTax, nil, s.networkTax, element.Decimals)
			if err != nil {
				return nil, err
			}
			captureDraft.ElementTax = captureTaxFields.ElementTax.String()
			captureDraft.NetworkTax = captureTaxFields.NetworkTax.String()
			captureDraft.TotalTax = captureTaxFields.TotalTax.String()
			captureDraft.Total = captureTaxFields.Total.String()

			if err := s.appendToLedger(ctx, ledgerColl, element.ID, &captureDraft); err != nil {
				return nil, err
			}
			haveCapture = true
			return nil, nil
		})
		if err != nil {
			return nil, err
		}

		debit := volume
		if haveCapture {
			if err := s.commitToBlock(ctx, &captureDraft); err != nil {
				return nil, err
			}
			debit = debit.Add(tax.TotalTax)
		}

		newSenderAmount, err := balance.Amount(senderBalance)
		if err != nil {
			return nil, err
		}
		newSenderAmount = newSenderAmount.Sub(debit)
		return nil, s.balances.Set(ctx, senderBalance, newSenderAmount)
	})
	if err != nil {
		return result.Response{}, err
	}
	if insufficient {
		return result.Err(result.INSUFFICIENT_BALANCE, "insufficient balance", requiredAmount.String()), nil
	}

	receiverLockName := balance.BuildID(dto.To, element.ID)
	_, err = s.sem.Execute(ctx, receiverLockName, s.lockTimeout, func(ctx context.Context) (interface{}, error) {
		receiverBalance, err := s.balances.Get(ctx, dto.To, element.ID)
		if err != nil {
			return nil, err
		}
		current, err := balance.Amount(receiverBalance)
		if err != nil {
			return nil, err
		}
		return nil, s.balances.Set(ctx, receiverBalance, current.Add(volume))
	})
	if err != nil {
		return result.Response{}, err
	}

	if err := s.commitToBlock(ctx, &draft); err != nil {
		return result.Response{}, err
	}

	var confirmed ledgertypes.Transaction
	if _, err := s.db.FindByID(ctx, ledgerColl, draft.ID, &confirmed); err != nil {
		return result.Response{}, err
	}
	return result.Ok(confirmed), nil
}

// appendToLedger chains tx under element's sequence and inserts it.
// Callers must hold the element.ID lock.
func (s *Service) appendToLedger(ctx context.Context, ledgerColl, elementID string, tx *ledgertypes.Transaction) error {
	seq, err := s.sequences.Get(ctx, elementID)
	if err != nil {
		return err
	}
	tx.PreviousID = seq.Data
	tx.ID = cryptoutil.KeccakHex(tx.PreviousID, tx.Hash)

	if err := s.db.InsertOne(ctx, ledgerColl, tx); err != nil {
		return err
	}
	id := tx.ID
	_, err = s.sequences.Set(ctx, elementID, nil, &id)
	return err
}

// commitToBlock enqueues tx into the current block and marks it confirmed.
func (s *Service) commitToBlock(ctx context.Context, tx *ledgertypes.Transaction) error {
	ref := ledgertypes.BlockTransactionRef{
		ID:      tx.ID,
		Ledger:  tx.Ledger,
		Element: tx.Element,
		Tax:     tx.TotalTax,
		Privacy: tx.Privacy,
	}
	if tx.Privacy {
		total := tx.Total
		ref.Volume = &total
	}
	blockNumber, err := s.blocks.AddTransactionToBlock(ctx, ref, time.Unix(0, tx.Timestamp*int64(time.Millisecond)))
	if err != nil {
		return err
	}
	tx.Confirmed = true
	tx.Block = blockNumber
	_, err = s.db.UpdateOne(ctx, tx.Ledger, store.M{"_id": tx.ID}, store.M{"$set": store.M{
		"confirmed": true,
		"block":     blockNumber,
	}})
	return err
}
