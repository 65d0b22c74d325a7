// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package norsh

import (
	"fmt"
	"strings"
)

// Constants of the ledger timeline.
const (
	// BlockWindowMillis is the wall-clock span of one block number.
	BlockWindowMillis int64 = 6 * 60 * 1000

	// WeekMillis is the span of one ledger shard.
	WeekMillis int64 = 7 * 24 * 60 * 60 * 1000

	// LedgerPrefix prefixes sharded transaction collections.
	LedgerPrefix = "ledger"

	// ProxySuffix marks proxy element symbols.
	ProxySuffix = "-P"
)

// Names of persisted collections.
const (
	CollectionElements  = "elements"
	CollectionBalances  = "balances"
	CollectionSequences = "sequences"
	CollectionBlocks    = "blocks"
)

// Well-known sequence ids and lock names.
const (
	// SequenceElements chains element ids; its data field always holds the
	// last inserted element id. The same name doubles as the lock guarding
	// element creation.
	SequenceElements = "elements"

	// SequenceBlockID chains block ids and counts block height.
	SequenceBlockID = "blockchain-block-id"

	// LockBlockchain guards the block timeline critical section.
	LockBlockchain = "blockchain"
)

// BlockNumber maps a unix-milli timestamp to its 6-minute window index.
func BlockNumber(ms int64) int64 {
	return ms / BlockWindowMillis
}

// Shard maps a unix-milli timestamp to its week index since the epoch.
func Shard(ms int64) int64 {
	return ms / WeekMillis
}

// LedgerName returns the collection name of a transaction shard.
func LedgerName(shard int64) string {
	return fmt.Sprintf("%s_%d", LedgerPrefix, shard)
}

// IsLedgerName reports whether name denotes a transaction shard collection.
func IsLedgerName(name string) bool {
	return strings.HasPrefix(name, LedgerPrefix+"_")
}
