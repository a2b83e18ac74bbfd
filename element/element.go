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

// Package element is the ElementService: creation and metadata maintenance
// of ledgered assets and proxies, chained through the "elements" dynamic
// sequence the same way a Transaction is chained through its element's own
// sequence.
package element

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/norsh-org/ledger-worker/cryptoutil"
	"github.com/norsh-org/ledger-worker/ledgertypes"
	"github.com/norsh-org/ledger-worker/lock"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/result"
	"github.com/norsh-org/ledger-worker/sequence"
	"github.com/norsh-org/ledger-worker/store"
)

const collection = "elements"

// SequenceKey is the "elements" dynamic-sequence id every Element is
// chained through, mirroring how a Transaction chains through its own
// element's sequence.
const SequenceKey = "elements"

var logger = log.NewModuleLogger(log.Element)

// Service is the ElementService.
type Service struct {
	db          store.Store
	sequences   *sequence.Store
	sem         *lock.Semaphore
	lockTimeout time.Duration
	now         func() time.Time
}

// New builds an ElementService.
func New(db store.Store, sequences *sequence.Store, sem *lock.Semaphore, lockTimeout time.Duration) *Service {
	return &Service{db: db, sequences: sequences, sem: sem, lockTimeout: lockTimeout, now: time.Now}
}

// FindByID loads an element by id. Satisfies ledger.ElementReader.
func (s *Service) FindByID(ctx context.Context, id string) (ledgertypes.Element, bool, error) {
	var el ledgertypes.Element
	ok, err := s.db.FindByID(ctx, collection, id, &el)
	return el, ok, err
}

// CreateRequest is the createElement DTO.
type CreateRequest struct {
	PublicKey         string
	Signature         string
	Hash              string
	Symbol            string
	Type              ledgertypes.ElementType
	Decimals          int32
	InitialSupply     string
	TFO               string
	Policy            ledgertypes.ElementPolicy
	MonitoredNetworks []string
}

// Validate checks the request is well-formed and the signature is genuine
// over Hash.
func (r CreateRequest) Validate() error {
	if r.PublicKey == "" || r.Signature == "" || r.Hash == "" || r.Symbol == "" {
		return errors.New("element: publicKey, signature, hash and symbol are required")
	}
	if r.Type != ledgertypes.ElementTypeCoin && r.Type != ledgertypes.ElementTypeProxy {
		return errors.New("element: unrecognized type " + string(r.Type))
	}
	ok, err := cryptoutil.Verify(r.PublicKey, r.Signature, []byte(r.Hash))
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("element: signature does not verify")
	}
	return nil
}

// CreateElement rejects a duplicate hash (EXISTS), then chains a new
// PENDING element through the "elements" sequence, per §4.7.
func (s *Service) CreateElement(ctx context.Context, dto CreateRequest) (result.Response, error) {
	found, err := s.db.FindOne(ctx, collection, store.M{"hash": dto.Hash}, nil, &ledgertypes.Element{})
	if err != nil {
		return result.Response{}, err
	}
	if found {
		return result.Err(result.EXISTS, "element with this hash already exists", nil), nil
	}

	if err := dto.Validate(); err != nil {
		return result.Err(result.ERROR, err.Error(), nil), nil
	}

	owner, err := cryptoutil.OwnerFromPublicKey(dto.PublicKey)
	if err != nil {
		return result.Err(result.ERROR, "invalid publicKey", nil), nil
	}

	el := ledgertypes.Element{
		Owner:             owner,
		Symbol:            dto.Symbol,
		Type:              dto.Type,
		Decimals:          dto.Decimals,
		InitialSupply:     dto.InitialSupply,
		TFO:               dto.TFO,
		Hash:              dto.Hash,
		PublicKey:         dto.PublicKey,
		Signature:         dto.Signature,
		Timestamp:         s.now().UnixNano() / int64(time.Millisecond),
		Privacy:           false,
		Status:            ledgertypes.ElementPending,
		Policy:            dto.Policy,
		MonitoredNetworks: dto.MonitoredNetworks,
		Version:           1,
	}

	if err := s.chainAndInsert(ctx, &el); err != nil {
		return result.Response{}, err
	}

	return result.Ok(el), nil
}

// chainAndInsert assigns previousId/id under the "elements" lock and
// persists el, incrementing the sequence counter and advancing its data to
// el.ID. Shared by CreateElement and Bootstrap, which differ only in the
// Status and other fields el already carries when called.
func (s *Service) chainAndInsert(ctx context.Context, el *ledgertypes.Element) error {
	_, err := s.sem.Execute(ctx, SequenceKey, s.lockTimeout, func(ctx context.Context) (interface{}, error) {
		seq, err := s.sequences.Get(ctx, SequenceKey)
		if err != nil {
			return nil, err
		}
		el.PreviousID = seq.Data
		el.ID = cryptoutil.KeccakHex(el.PreviousID, el.Hash, strconv.FormatInt(el.Timestamp, 10))

		if err := s.db.InsertOne(ctx, collection, el); err != nil {
			return nil, err
		}
		if _, err := s.sequences.Inc(ctx, SequenceKey, &el.ID); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// SetMetadataRequest is the setMetadata DTO. Fields maps a recognized
// metadata key to its desired value: nil leaves the key untouched, an
// empty string unsets it, anything else sets it. When the element already
// carries metadata, CaptureTx (if non-nil) is invoked first and its
// failure is propagated as this operation's result, per §4.7.
//
// CaptureTx is a Go closure and so is never populated by unmarshaling a
// dispatched envelope; CaptureTransfer is the wire-shaped equivalent a
// caller submits over the transport, which the dispatcher's handler turns
// into a CaptureTx closure (calling ledger.Service.CreateTransfer) before
// invoking SetMetadata.
type SetMetadataRequest struct {
	ElementID       string
	PublicKey       string
	Fields          map[string]*string
	CaptureTransfer *CaptureTransfer
	CaptureTx       func() (result.Response, error) `json:"-"`
}

// CaptureTransfer mirrors the signed-transfer fields needed to fund a
// metadata-change fee capture, carried over the wire so this package
// doesn't need to import ledger to describe the payload shape.
type CaptureTransfer struct {
	PublicKey string
	Signature string
	Element   string
	To        string
	Volume    string
	Nonce     string
	Hash      string
}

// SetMetadata applies an owner-authorized metadata patch to an element.
func (s *Service) SetMetadata(ctx context.Context, dto SetMetadataRequest) (result.Response, error) {
	var el ledgertypes.Element
	found, err := s.db.FindByID(ctx, collection, dto.ElementID, &el)
	if err != nil {
		return result.Response{}, err
	}
	if !found {
		return result.Err(result.NOT_FOUND, "element not found", nil), nil
	}

	owner, err := cryptoutil.OwnerFromPublicKey(dto.PublicKey)
	if err != nil {
		return result.Err(result.ERROR, "invalid publicKey", nil), nil
	}
	if owner != el.Owner {
		return result.Err(result.FORBIDDEN, "not the element owner", nil), nil
	}

	if len(el.Metadata) > 0 && dto.CaptureTx != nil {
		resp, err := dto.CaptureTx()
		if err != nil {
			return result.Response{}, err
		}
		if !resp.IsOK() {
			return resp, nil
		}
	}

	if el.Metadata == nil {
		el.Metadata = map[string]string{}
	}
	for k, v := range dto.Fields {
		if v == nil {
			continue
		}
		if *v == "" {
			delete(el.Metadata, k)
		} else {
			el.Metadata[k] = *v
		}
	}
	if len(el.Metadata) == 0 {
		el.Metadata = nil
	}

	if err := s.db.ReplaceByID(ctx, collection, el.ID, el); err != nil {
		return result.Response{}, err
	}
	return result.Ok(el), nil
}
