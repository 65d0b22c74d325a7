// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/balance"
	"github.com/norsh/blockchain/block"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/element"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
	"github.com/norsh/blockchain/norsh"
	"github.com/norsh/blockchain/semaphore"
	"github.com/norsh/blockchain/sequence"
)

var logger = log.WithContext("pkg", "tx")

var (
	metricCommits  = metrics.LazyLoadCounter("tx_commit_count")
	metricRejected = metrics.LazyLoadCounter("tx_rejected_count")
	metricRewards  = metrics.LazyLoadCounter("tx_reward_count")
)

// hashIndexSuffix names the per-ledger companion collection keyed by request
// hash, the idempotency guard of transfer creation.
const hashIndexSuffix = "_hashes"

// Mutator adjusts a draft transaction before it is committed, used by paid
// element updates to attach audit metadata.
type Mutator func(t *Transaction)

// Service implements transaction operations.
type Service struct {
	store       *docdb.Store
	balances    *balance.Store
	seqs        *sequence.Store
	sem         *semaphore.Semaphore
	blocks      *block.Service
	elements    *element.Service
	networkTax  decimal.Decimal
	deductTotal bool

	rewardElement string
	rewardOwner   string

	nowMilli func() int64
}

// NewService wires the transaction service.
func NewService(store *docdb.Store, balances *balance.Store, seqs *sequence.Store, sem *semaphore.Semaphore,
	blocks *block.Service, elements *element.Service, cfg *config.Config, nowMilli func() int64,
) *Service {
	if nowMilli == nil {
		nowMilli = func() int64 { return time.Now().UnixMilli() }
	}
	return &Service{
		store:       store,
		balances:    balances,
		seqs:        seqs,
		sem:         sem,
		blocks:      blocks,
		elements:    elements,
		networkTax:  cfg.NetworkPolicy.NetworkTax,
		deductTotal: cfg.Balances.DeductTotal,
		nowMilli:    nowMilli,
	}
}

// SetRewardElement names the element and network owner used to mint mining
// rewards. Left unset, verified blocks are logged but not rewarded.
func (s *Service) SetRewardElement(elementID, owner string) {
	s.rewardElement = elementID
	s.rewardOwner = owner
}

func (s *Service) ledger(shard int64) *docdb.Collection {
	return s.store.Collection(norsh.LedgerName(shard))
}

func (s *Service) hashIndex(shard int64) *docdb.Collection {
	return s.store.Collection(norsh.LedgerName(shard) + hashIndexSuffix)
}

// Get handles the GET verb: fetch a transaction by id, searching the current
// and the previous ledger bucket.
func (s *Service) Get(_ context.Context, payload json.RawMessage) dispatch.Result {
	var dto GetDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return dispatch.Err(norsh.StatusError, "malformed payload")
	}
	if err := dto.Validate(); err != nil {
		return dispatch.Err(norsh.StatusError, err.Error())
	}

	shard := norsh.Shard(s.nowMilli())
	for _, sh := range []int64{shard, shard - 1} {
		if sh < 0 {
			continue
		}
		var t Transaction
		err := s.ledger(sh).Get(dto.ID, &t)
		if err == nil {
			return dispatch.Ok(&t)
		}
		if !docdb.IsNotFound(err) {
			logger.Error("transaction load failed", "id", dto.ID, "err", err)
			return dispatch.Internal()
		}
	}
	return dispatch.Err(norsh.StatusNotFound, "")
}

// Create handles the POST verb: a plain transfer with no mutator.
func (s *Service) Create(ctx context.Context, payload json.RawMessage) dispatch.Result {
	var dto CreateDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return dispatch.Err(norsh.StatusError, "malformed payload")
	}
	return s.CreateTransfer(ctx, &dto, nil)
}

// CreateTransfer validates, taxes and commits a transfer. The optional
// mutator runs on the draft before balances move, letting callers attach
// metadata that is persisted with the transaction.
func (s *Service) CreateTransfer(ctx context.Context, dto *CreateDTO, mutate Mutator) dispatch.Result {
	if err := dto.Validate(); err != nil {
		metricRejected().Add(1)
		return dispatch.Err(norsh.StatusError, err.Error())
	}

	el, err := s.elements.ByID(dto.Element)
	if docdb.IsNotFound(err) {
		return dispatch.Err(norsh.StatusError, "Element not found")
	}
	if err != nil {
		logger.Error("element load failed", "id", dto.Element, "err", err)
		return dispatch.Internal()
	}

	owner, err := cry.Owner(dto.PublicKey)
	if err != nil {
		return dispatch.Err(norsh.StatusError, "malformed public key")
	}

	now := s.nowMilli()
	t := &Transaction{
		Type:      TypeTransfer,
		From:      owner,
		To:        dto.To,
		Element:   dto.Element,
		Volume:    dto.Volume.Abs(),
		Nonce:     dto.Nonce,
		Hash:      dto.Hash,
		PublicKey: dto.PublicKey,
		Signature: dto.Signature,
		Timestamp: now,
		Shard:     norsh.Shard(now),
		Privacy:   el.Privacy,
		Version:   1,
	}
	t.Ledger = norsh.LedgerName(t.Shard)

	// Idempotency: a transfer with the same hash in this bucket already ran.
	if exists, err := s.hashIndex(t.Shard).Exists(t.Hash); err != nil {
		logger.Error("ledger hash lookup failed", "err", err)
		return dispatch.Internal()
	} else if exists {
		return dispatch.Err(norsh.StatusExists, "")
	}

	s.computeTax(t, el)
	if mutate != nil {
		mutate(t)
	}

	if res := s.commitFrom(ctx, t); !res.IsOK() {
		metricRejected().Add(1)
		return res
	}
	if err := s.creditTo(ctx, t.To, t.Element, t.Volume); err != nil {
		// The sender side is committed; flag the document instead of
		// dropping the credit silently.
		logger.Error("receiver credit failed", "tx", t.ID, "to", t.To, "err", err)
		s.markCreditPending(t)
	}
	return s.confirm(ctx, t)
}

// commitFrom runs the sender-side critical section: balance check, chained
// append to the ledger, deduction.
func (s *Service) commitFrom(ctx context.Context, t *Transaction) dispatch.Result {
	lockFrom := balance.ID(t.From, t.Element)
	res, err := semaphore.Execute(ctx, s.sem, lockFrom, func() (dispatch.Result, error) {
		from, err := s.balances.Get(t.From, t.Element)
		if err != nil {
			return dispatch.Result{}, err
		}
		if from.Amount.LessThan(t.Total) {
			return dispatch.Errf(norsh.StatusInsufficientBalance, "Your need %s", t.Total), nil
		}

		// The element sequence lock nests inside the sender lock; distinct
		// names never deadlock.
		if err := s.appendChained(ctx, t); err != nil {
			return dispatch.Result{}, err
		}

		deduct := t.Volume
		if s.deductTotal {
			deduct = t.Total
		}
		if err := s.balances.Set(from, from.Amount.Sub(deduct)); err != nil {
			return dispatch.Result{}, err
		}
		return dispatch.Ok(t), nil
	})
	if err != nil {
		logger.Error("transfer commit failed", "hash", t.Hash, "err", err)
		return dispatch.Internal()
	}
	return res
}

// appendChained links the transaction to the element's sequence and writes
// it to its ledger bucket plus the hash index. Caller holds the sender lock.
func (s *Service) appendChained(ctx context.Context, t *Transaction) error {
	return s.sem.Execute(ctx, t.Element, func() error {
		seq, err := s.seqs.Get(t.Element)
		if err != nil {
			return err
		}
		t.PreviousID = seq.Data
		t.ID = ChainID(t.PreviousID, t.Hash)

		if err := s.ledger(t.Shard).Put(t.ID, t); err != nil {
			return err
		}
		if err := s.hashIndex(t.Shard).Put(t.Hash, &struct {
			ID string `json:"id"`
		}{ID: t.ID}); err != nil {
			return err
		}
		return s.seqs.SetData(t.Element, t.ID)
	})
}

// creditTo adds volume to the receiver under its own lock.
func (s *Service) creditTo(ctx context.Context, to, elementID string, volume decimal.Decimal) error {
	lockTo := balance.ID(to, elementID)
	return s.sem.Execute(ctx, lockTo, func() error {
		b, err := s.balances.Get(to, elementID)
		if err != nil {
			return err
		}
		return s.balances.Set(b, b.Amount.Add(volume))
	})
}

// markCreditPending flags a transaction whose receiver credit failed after
// the sender side committed, so reconciliation can find it. The flag
// survives the confirm update, which mutates the stored document in place.
func (s *Service) markCreditPending(t *Transaction) {
	err := s.ledger(t.Shard).Update(t.ID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, errors.Errorf("transaction [%v] vanished", t.ID)
		}
		var cur Transaction
		if err := json.Unmarshal(raw, &cur); err != nil {
			return nil, errors.Wrap(err, "decode transaction")
		}
		cur.CreditPending = true
		return &cur, nil
	})
	if err != nil {
		logger.Error("credit reconciliation flag failed", "tx", t.ID, "err", err)
	}
}

// confirm places the transaction into the block timeline and marks the
// ledger document confirmed.
func (s *Service) confirm(ctx context.Context, t *Transaction) dispatch.Result {
	ref := block.TxRef{
		ID:      t.ID,
		Ledger:  t.Ledger,
		Element: t.Element,
		Tax:     t.TotalTax,
		Privacy: t.Privacy,
	}
	if t.Privacy {
		total := t.Total
		ref.Volume = &total
	}
	number, err := s.blocks.AddTransaction(ctx, ref)
	if err != nil {
		logger.Error("block placement failed", "tx", t.ID, "err", err)
		return dispatch.Internal()
	}

	err = s.ledger(t.Shard).Update(t.ID, func(raw []byte) (any, error) {
		if raw == nil {
			return nil, errors.Errorf("transaction [%v] vanished", t.ID)
		}
		var cur Transaction
		if err := json.Unmarshal(raw, &cur); err != nil {
			return nil, errors.Wrap(err, "decode transaction")
		}
		cur.Confirmed = true
		cur.Block = number
		return &cur, nil
	})
	if err != nil {
		logger.Error("confirm update failed", "tx", t.ID, "err", err)
		return dispatch.Internal()
	}

	var result Transaction
	if err := s.ledger(t.Shard).Get(t.ID, &result); err != nil {
		logger.Error("confirmed reload failed", "tx", t.ID, "err", err)
		return dispatch.Internal()
	}
	metricCommits().Add(1)
	logger.Info("transaction committed", "id", t.ID, "element", t.Element, "block", number)
	return dispatch.Ok(&result)
}

// computeTax fills the tax block of a draft. Network-issued types and zero
// volume carry no tax; rates are percentages divided half-up at the
// element's decimals.
func (s *Service) computeTax(t *Transaction, el *element.Element) {
	if t.Type == TypeCapture || t.Type == TypeReward || t.Volume.IsZero() {
		t.ElementTax = decimal.Zero
		t.NetworkTax = decimal.Zero
		t.TotalTax = decimal.Zero
		t.Total = t.Volume
		return
	}

	hundred := decimal.NewFromInt(100)

	elementRate := decimal.Zero
	if el.Policy != nil && el.Policy.TransactionTax != nil {
		elementRate = el.Policy.TransactionTax.DivRound(hundred, el.Decimals)
	}
	networkRate := s.networkTax.DivRound(hundred, el.Decimals)

	t.ElementTax = t.Volume.Mul(elementRate)
	t.NetworkTax = t.Volume.Mul(networkRate)
	t.TotalTax = t.ElementTax.Add(t.NetworkTax)
	t.Total = t.Volume.Add(t.TotalTax)
}

// MintReward credits a block's total fee to its miner as a REWARD
// transaction. Wired as the block service's reward hook; without a reward
// element configured it only logs.
func (s *Service) MintReward(ctx context.Context, b *block.Block) error {
	if s.rewardElement == "" {
		logger.Info("miner rewarded", "miner", b.Miner, "block", b.ID)
		return nil
	}
	if b.TotalFee.IsZero() {
		return nil
	}

	el, err := s.elements.ByID(s.rewardElement)
	if err != nil {
		return errors.Wrap(err, "load reward element")
	}

	now := s.nowMilli()
	t := &Transaction{
		Type:      TypeReward,
		From:      s.rewardOwner,
		To:        b.Miner,
		Element:   s.rewardElement,
		Volume:    b.TotalFee,
		Hash:      cry.Sha256HexString(norsh.Concat(b.ID, b.Miner)),
		Timestamp: now,
		Shard:     norsh.Shard(now),
		Privacy:   el.Privacy,
		Link:      b.ID,
		Version:   1,
	}
	t.Ledger = norsh.LedgerName(t.Shard)
	s.computeTax(t, el)

	// Rewards mint new supply: no sender balance moves, only the chained
	// append and the receiver credit.
	err = s.sem.Execute(ctx, balance.ID(t.From, t.Element), func() error {
		return s.appendChained(ctx, t)
	})
	if err != nil {
		return errors.Wrap(err, "append reward")
	}
	if err := s.creditTo(ctx, t.To, t.Element, t.Volume); err != nil {
		logger.Error("receiver credit failed", "tx", t.ID, "to", t.To, "err", err)
		s.markCreditPending(t)
	}

	if res := s.confirm(ctx, t); !res.IsOK() {
		return errors.Errorf("reward not confirmed: %v", res.Status)
	}
	metricRewards().Add(1)
	logger.Info("miner rewarded", "miner", b.Miner, "block", b.ID, "volume", b.TotalFee)
	return nil
}

// ChargeFee adapts CreateTransfer to the element service's fee hook: the raw
// payload is decoded as a transfer request and committed with the audit
// metadata attached.
func (s *Service) ChargeFee(ctx context.Context, raw json.RawMessage, meta map[string]string) dispatch.Result {
	var dto CreateDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return dispatch.Err(norsh.StatusError, "malformed fee transaction")
	}
	return s.CreateTransfer(ctx, &dto, func(t *Transaction) {
		t.Metadata = meta
	})
}
