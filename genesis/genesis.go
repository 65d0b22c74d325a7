// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis bootstraps a fresh ledger: the NSH coin and the USDN-P
// proxy, signed with the network keys. Runs exactly once; the existence of
// the elements sequence is the has-run sentinel.
package genesis

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/element"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/norsh"
	"github.com/norsh/blockchain/sequence"
)

var logger = log.WithContext("pkg", "genesis")

// Genesis element identities.
const (
	NshSymbol        = "NSH"
	NshDecimals      = 18
	NshInitialSupply = 45_000_000

	UsdnSymbol   = "USDN-P"
	UsdnDecimals = 6
)

// usdnMonitored maps the monitored contract to its network.
var usdnMonitored = map[string]string{
	"0x9E00eecbD1B387C01E7C8A449dF1FDbA0caa5B4e": "ETHEREUM",
}

// Result carries the identities the rest of the node wires against.
type Result struct {
	NshID  string
	UsdnID string
	Owner  string
}

// Bootstrap creates the genesis elements when the ledger is empty, and on an
// initialized ledger only resolves them. Fails hard when the configured keys
// cannot produce a verifiable signature.
func Bootstrap(ctx context.Context, elements *element.Service, seqs *sequence.Store, cfg *config.Config, nowMilli func() int64) (*Result, error) {
	if nowMilli == nil {
		nowMilli = func() int64 { return time.Now().UnixMilli() }
	}

	owner, err := cry.Owner(cfg.Genesis.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "genesis public key")
	}

	exists, err := seqs.Exists(norsh.SequenceElements)
	if err != nil {
		return nil, err
	}
	if exists {
		return resolve(elements, cfg, owner)
	}

	nsh := &element.Element{
		Type:          element.TypeCoin,
		Owner:         owner,
		Symbol:        NshSymbol,
		Decimals:      NshDecimals,
		InitialSupply: NshInitialSupply,
		TFO:           cfg.Genesis.NshTFO,
		PublicKey:     cfg.Genesis.PublicKey,
		Timestamp:     nowMilli(),
		Status:        element.StatusEnabled,
		Version:       1,
		Metadata: map[string]string{
			"name": "Norsh",
			"site": "https://norsh.org",
		},
	}
	if err := signAndInsert(ctx, elements, cfg, nsh); err != nil {
		return nil, err
	}

	usdn := &element.Element{
		Type:              element.TypeProxy,
		Owner:             owner,
		Symbol:            UsdnSymbol,
		Decimals:          UsdnDecimals,
		PublicKey:         cfg.Genesis.PublicKey,
		Timestamp:         nowMilli(),
		Status:            element.StatusEnabled,
		Version:           1,
		MonitoredNetworks: usdnMonitored,
		Metadata: map[string]string{
			"name": "USD Norsh Proxy",
			"site": "https://norsh.org",
		},
	}
	if err := signAndInsert(ctx, elements, cfg, usdn); err != nil {
		return nil, err
	}

	logger.Info("ledger bootstrapped", "nsh", nsh.ID, "usdn", usdn.ID, "owner", owner)
	return &Result{NshID: nsh.ID, UsdnID: usdn.ID, Owner: owner}, nil
}

// signAndInsert completes the element's crypto fields and chains it in.
func signAndInsert(ctx context.Context, elements *element.Service, cfg *config.Config, e *element.Element) error {
	e.Hash = element.HashOf(e.Symbol, e.Decimals, e.InitialSupply, e.TFO, e.PublicKey)

	sig, err := cry.SignHash(cfg.Genesis.PrivateKey, e.Hash)
	if err != nil {
		return errors.Wrapf(err, "sign genesis element %s", e.Symbol)
	}
	e.Signature = sig

	// Self-check before anything is persisted: a key mismatch here would
	// poison the chain root.
	if !cry.VerifyHash(e.PublicKey, e.Signature, e.Hash) {
		return errors.Errorf("genesis element %s: signature does not verify against the configured public key", e.Symbol)
	}
	return elements.Insert(ctx, e)
}

// resolve looks the genesis elements up by their canonical hashes on an
// already-initialized ledger.
func resolve(elements *element.Service, cfg *config.Config, owner string) (*Result, error) {
	nshHash := element.HashOf(NshSymbol, NshDecimals, NshInitialSupply, cfg.Genesis.NshTFO, cfg.Genesis.PublicKey)
	nsh, err := elements.ByHash(nshHash)
	if err != nil {
		return nil, errors.Wrap(err, "resolve NSH element")
	}

	usdnHash := element.HashOf(UsdnSymbol, UsdnDecimals, 0, "", cfg.Genesis.PublicKey)
	usdn, err := elements.ByHash(usdnHash)
	if err != nil {
		return nil, errors.Wrap(err, "resolve USDN-P element")
	}
	return &Result{NshID: nsh.ID, UsdnID: usdn.ID, Owner: owner}, nil
}
