// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/element"
	"github.com/norsh/blockchain/semaphore"
	"github.com/norsh/blockchain/sequence"
)

func newEnv(t *testing.T) (*element.Service, *sequence.Store, *config.Config) {
	db, err := docdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Genesis.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))
	cfg.Genesis.PublicKey = hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))
	cfg.Genesis.NshTFO = "tfo-hash"

	seqs := sequence.NewStore(db)
	sem := semaphore.New(cache.NewMemory(), cfg.Defaults)
	elements := element.NewService(db, seqs, sem, nil)
	return elements, seqs, cfg
}

func TestBootstrap(t *testing.T) {
	elements, seqs, cfg := newEnv(t)
	ctx := context.Background()

	res, err := Bootstrap(ctx, elements, seqs, cfg, nil)
	require.NoError(t, err)

	nsh, err := elements.ByID(res.NshID)
	require.NoError(t, err)
	assert.Equal(t, element.TypeCoin, nsh.Type)
	assert.Equal(t, NshSymbol, nsh.Symbol)
	assert.EqualValues(t, NshDecimals, nsh.Decimals)
	assert.EqualValues(t, NshInitialSupply, nsh.InitialSupply)
	assert.Equal(t, element.StatusEnabled, nsh.Status)
	assert.Equal(t, res.Owner, nsh.Owner)
	assert.Empty(t, nsh.PreviousID)
	assert.True(t, cry.VerifyHash(nsh.PublicKey, nsh.Signature, nsh.Hash))

	usdn, err := elements.ByID(res.UsdnID)
	require.NoError(t, err)
	assert.Equal(t, element.TypeProxy, usdn.Type)
	assert.EqualValues(t, UsdnDecimals, usdn.Decimals)
	assert.Equal(t, "ETHEREUM", usdn.MonitoredNetworks["0x9E00eecbD1B387C01E7C8A449dF1FDbA0caa5B4e"])
	// Proxy chains directly after the coin.
	assert.Equal(t, nsh.ID, usdn.PreviousID)
}

func TestBootstrapIdempotent(t *testing.T) {
	elements, seqs, cfg := newEnv(t)
	ctx := context.Background()

	first, err := Bootstrap(ctx, elements, seqs, cfg, nil)
	require.NoError(t, err)

	second, err := Bootstrap(ctx, elements, seqs, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBootstrapRejectsMismatchedKeys(t *testing.T) {
	elements, seqs, cfg := newEnv(t)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg.Genesis.PrivateKey = hex.EncodeToString(crypto.FromECDSA(other))

	_, err = Bootstrap(context.Background(), elements, seqs, cfg, nil)
	assert.Error(t, err)
}
