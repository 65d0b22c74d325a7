// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package element

import (
	"context"
	"encoding/json"
	"time"

	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/norsh"
	"github.com/norsh/blockchain/sequence"

	ncache "github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/semaphore"
)

var logger = log.WithContext("pkg", "element")

// hashIndex is the KV rendition of the unique index on an element's hash:
// a companion collection keyed by hash, valued with the element id.
const hashIndex = norsh.CollectionElements + "_hashes"

const elementCacheSize = 512

// FeeCharger executes the fee transfer gating a paid element update. raw is
// the embedded transaction payload; meta is attached to the committed
// transaction for audit. Wired to the transaction service at startup.
type FeeCharger func(ctx context.Context, raw json.RawMessage, meta map[string]string) dispatch.Result

// Service implements element operations.
type Service struct {
	col      *docdb.Collection
	hashes   *docdb.Collection
	seq      *sequence.Store
	sem      *semaphore.Semaphore
	lru      *ncache.LRU
	charge   FeeCharger
	nowMilli func() int64
}

// NewService wires the element service.
func NewService(store *docdb.Store, seq *sequence.Store, sem *semaphore.Semaphore, nowMilli func() int64) *Service {
	lru, err := ncache.NewLRU(elementCacheSize)
	if err != nil {
		panic(err) // only on non-positive size
	}
	if nowMilli == nil {
		nowMilli = func() int64 { return time.Now().UnixMilli() }
	}
	return &Service{
		col:      store.Collection(norsh.CollectionElements),
		hashes:   store.Collection(hashIndex),
		seq:      seq,
		sem:      sem,
		lru:      lru,
		nowMilli: nowMilli,
	}
}

// SetFeeCharger installs the paid-update hook. Separate from NewService
// because the transaction service is constructed after this one.
func (s *Service) SetFeeCharger(charge FeeCharger) {
	s.charge = charge
}

// ByID loads an element through the read-through cache. Returns
// docdb.ErrNotFound when absent.
func (s *Service) ByID(id string) (*Element, error) {
	v, err := s.lru.GetOrLoad(id, func(key string) (interface{}, error) {
		var e Element
		if err := s.col.Get(key, &e); err != nil {
			return nil, err
		}
		return &e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Element), nil
}

// ByHash resolves an element id through the hash index and loads it.
// Returns docdb.ErrNotFound when no element carries the hash.
func (s *Service) ByHash(hash string) (*Element, error) {
	var ptr struct {
		ID string `json:"id"`
	}
	if err := s.hashes.Get(hash, &ptr); err != nil {
		return nil, err
	}
	return s.ByID(ptr.ID)
}

// Get handles the GET verb: fetch an element by id.
func (s *Service) Get(_ context.Context, payload json.RawMessage) dispatch.Result {
	var dto GetDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return dispatch.Err(norsh.StatusError, "malformed payload")
	}
	if err := dto.Validate(); err != nil {
		return dispatch.Err(norsh.StatusError, err.Error())
	}
	e, err := s.ByID(dto.ID)
	if docdb.IsNotFound(err) {
		return dispatch.Err(norsh.StatusNotFound, "")
	}
	if err != nil {
		logger.Error("element load failed", "id", dto.ID, "err", err)
		return dispatch.Internal()
	}
	return dispatch.Ok(e)
}

// Create handles the POST verb: validate, chain and persist a new element.
func (s *Service) Create(ctx context.Context, payload json.RawMessage) dispatch.Result {
	var dto CreateDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return dispatch.Err(norsh.StatusError, "malformed payload")
	}
	if err := dto.Validate(); err != nil {
		return dispatch.Err(norsh.StatusError, err.Error())
	}

	if exists, err := s.hashes.Exists(dto.Hash); err != nil {
		logger.Error("hash index lookup failed", "err", err)
		return dispatch.Internal()
	} else if exists {
		return dispatch.Err(norsh.StatusExists, "Element exists")
	}

	owner, err := cry.Owner(dto.PublicKey)
	if err != nil {
		return dispatch.Err(norsh.StatusError, err.Error())
	}

	e := &Element{
		Type:          dto.Type,
		Owner:         owner,
		Symbol:        dto.Symbol,
		Decimals:      dto.Decimals,
		InitialSupply: dto.InitialSupply,
		TFO:           dto.TFO,
		Hash:          dto.Hash,
		PublicKey:     dto.PublicKey,
		Signature:     dto.Signature,
		Timestamp:     s.nowMilli(),
		Privacy:       false,
		Status:        StatusPending,
		Version:       1,
	}

	if err := s.Insert(ctx, e); err != nil {
		logger.Error("element creation failed", "symbol", dto.Symbol, "err", err)
		return dispatch.Internal()
	}

	logger.Info("element created", "id", e.ID, "symbol", e.Symbol, "type", e.Type)
	return dispatch.Ok(e)
}

// Insert chains a fully-built element into the sequence and persists it with
// its hash index entry. Used by Create and by the genesis bootstrap, which
// builds its documents directly.
func (s *Service) Insert(ctx context.Context, e *Element) error {
	return s.sem.Execute(ctx, norsh.SequenceElements, func() error {
		seq, err := s.seq.Get(norsh.SequenceElements)
		if err != nil {
			return err
		}
		e.PreviousID = seq.Data
		e.ID = ChainID(e.PreviousID, e.Hash, e.Timestamp)

		if err := s.col.Put(e.ID, e); err != nil {
			return err
		}
		if err := s.hashes.Put(e.Hash, map[string]string{"id": e.ID}); err != nil {
			return err
		}
		return s.seq.SetData(norsh.SequenceElements, e.ID)
	})
}

// metadata patch fields recognized by SetMetadata, in application order.
var metadataFields = []string{"name", "about", "logo", "site", "policy"}

// SetMetadata handles the PUT verb: owner-checked metadata patch, gated on
// a fee transaction once the element already carries metadata.
func (s *Service) SetMetadata(ctx context.Context, payload json.RawMessage) dispatch.Result {
	var dto MetadataDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return dispatch.Err(norsh.StatusError, "malformed payload")
	}
	if err := dto.Validate(); err != nil {
		return dispatch.Err(norsh.StatusError, err.Error())
	}

	e, err := s.ByID(dto.ID)
	if docdb.IsNotFound(err) {
		return dispatch.Err(norsh.StatusNotFound, "")
	}
	if err != nil {
		logger.Error("element load failed", "id", dto.ID, "err", err)
		return dispatch.Internal()
	}

	owner, err := cry.Owner(dto.PublicKey)
	if err != nil {
		return dispatch.Err(norsh.StatusError, err.Error())
	}
	if e.Owner != owner {
		return dispatch.Err(norsh.StatusForbidden, "")
	}

	// The first metadata write is free; later rewrites are charged.
	if e.Metadata != nil {
		if s.charge == nil || len(dto.Transaction) == 0 {
			return dispatch.Err(norsh.StatusError, "metadata update requires a fee transaction")
		}
		feeResult := s.charge(ctx, dto.Transaction, map[string]string{
			"element": e.ID,
			"action":  "UPDATE",
			"child":   "metadata",
		})
		if !feeResult.IsOK() {
			return feeResult
		}
	}

	patch := map[string]*string{
		"name":   dto.Name,
		"about":  dto.About,
		"logo":   dto.Logo,
		"site":   dto.Site,
		"policy": dto.Policy,
	}
	err = s.col.Update(dto.ID, func(raw []byte) (any, error) {
		var doc Element
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		for _, field := range metadataFields {
			value := patch[field]
			if value == nil {
				continue
			}
			if *value == "" {
				delete(doc.Metadata, field)
				continue
			}
			if doc.Metadata == nil {
				doc.Metadata = make(map[string]string)
			}
			doc.Metadata[field] = *value
		}
		return &doc, nil
	})
	if err != nil {
		logger.Error("metadata update failed", "id", dto.ID, "err", err)
		return dispatch.Internal()
	}
	s.lru.Remove(dto.ID)

	updated, err := s.ByID(dto.ID)
	if err != nil {
		logger.Error("element reload failed", "id", dto.ID, "err", err)
		return dispatch.Internal()
	}
	return dispatch.Ok(updated)
}
