// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package indexdb maintains a relational index of closed blocks and their
// transaction references, for range queries the document store cannot
// serve. Rows are written at block close; the index is derived data and can
// be rebuilt from the blocks collection at any time.
package indexdb

import (
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/norsh/blockchain/block"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/norsh"
)

var logger = log.WithContext("pkg", "indexdb")

const schema = `CREATE TABLE IF NOT EXISTS blocks (
	number INTEGER PRIMARY KEY,
	height INTEGER NOT NULL,
	id TEXT NOT NULL,
	close_ts INTEGER NOT NULL,
	total_fee TEXT NOT NULL,
	difficulty INTEGER NOT NULL,
	merkle_root TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS blocks_height ON blocks(height);
CREATE TABLE IF NOT EXISTS block_txs (
	block_number INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	tx_id TEXT NOT NULL,
	element TEXT NOT NULL,
	ledger TEXT NOT NULL,
	tax TEXT NOT NULL,
	PRIMARY KEY (block_number, seq)
);
CREATE INDEX IF NOT EXISTS block_txs_tx ON block_txs(tx_id);
CREATE INDEX IF NOT EXISTS block_txs_element ON block_txs(element);`

// IndexDB is the sqlite-backed block index.
type IndexDB struct {
	path string
	db   *sql.DB
}

// New creates or opens the index at the given path.
func New(path string) (idx *IndexDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open indexdb")
	}
	defer func() {
		if idx == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "create indexdb schema")
	}
	return &IndexDB{path: path, db: db}, nil
}

// NewMem creates an index in ram.
func NewMem() (*IndexDB, error) {
	return New(":memory:")
}

// Close closes the index.
func (x *IndexDB) Close() error {
	return x.db.Close()
}

// Path returns the database path.
func (x *IndexDB) Path() string {
	return x.path
}

// IndexBlock writes a closed block and its transaction refs in one
// transaction, replacing any rows of a previous write of the same number.
func (x *IndexDB) IndexBlock(b *block.Block) (err error) {
	tx, err := x.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin index tx")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(
		"INSERT OR REPLACE INTO blocks (number, height, id, close_ts, total_fee, difficulty, merkle_root) VALUES (?,?,?,?,?,?,?)",
		b.Number, b.Height, b.ID, b.CloseTimestamp, b.TotalFee.String(), b.Difficulty, b.MerkleRoot,
	); err != nil {
		return errors.Wrap(err, "insert block row")
	}
	if _, err = tx.Exec("DELETE FROM block_txs WHERE block_number = ?", b.Number); err != nil {
		return errors.Wrap(err, "clear tx rows")
	}
	for i, ref := range b.Transactions {
		if _, err = tx.Exec(
			"INSERT INTO block_txs (block_number, seq, tx_id, element, ledger, tax) VALUES (?,?,?,?,?,?)",
			b.Number, i, ref.ID, ref.Element, ref.Ledger, ref.Tax.String(),
		); err != nil {
			return errors.Wrap(err, "insert tx row")
		}
	}
	return errors.Wrap(tx.Commit(), "commit index tx")
}

// BlockRow is one indexed block.
type BlockRow struct {
	Number     int64
	Height     int64
	ID         string
	CloseTS    int64
	TotalFee   string
	Difficulty int
	MerkleRoot string
}

// BlocksByHeight returns indexed blocks with height in [from, to], ascending.
func (x *IndexDB) BlocksByHeight(from, to int64) ([]*BlockRow, error) {
	rows, err := x.db.Query(
		"SELECT number, height, id, close_ts, total_fee, difficulty, merkle_root FROM blocks WHERE height >= ? AND height <= ? ORDER BY height",
		from, to,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query blocks")
	}
	defer rows.Close()

	var out []*BlockRow
	for rows.Next() {
		var r BlockRow
		if err := rows.Scan(&r.Number, &r.Height, &r.ID, &r.CloseTS, &r.TotalFee, &r.Difficulty, &r.MerkleRoot); err != nil {
			return nil, errors.Wrap(err, "scan block row")
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// BlockByTransaction resolves the block number holding a transaction, the
// indexed counterpart of the timeline scan.
func (x *IndexDB) BlockByTransaction(txID string) (int64, bool, error) {
	var number int64
	err := x.db.QueryRow("SELECT block_number FROM block_txs WHERE tx_id = ?", txID).Scan(&number)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "query tx row")
	}
	return number, true, nil
}

// Rebuild re-scans the blocks collection and rewrites every closed block's
// rows, with a progress bar when the index is rebuilt interactively.
func (x *IndexDB) Rebuild(store *docdb.Store, showProgress bool) error {
	col := store.Collection(norsh.CollectionBlocks)
	total, err := col.Count()
	if err != nil {
		return err
	}

	var bar *pb.ProgressBar
	if showProgress {
		bar = pb.StartNew(total)
		defer bar.Finish()
	}

	var indexed int
	err = col.Iterate(func(id string, raw []byte) bool {
		if bar != nil {
			bar.Increment()
		}
		var b block.Block
		if jsonErr := json.Unmarshal(raw, &b); jsonErr != nil {
			logger.Warn("skipping undecodable block", "id", id, "err", jsonErr)
			return true
		}
		if !b.Closed {
			return true
		}
		if err = x.IndexBlock(&b); err != nil {
			return false
		}
		indexed++
		return true
	})
	if err != nil {
		return err
	}
	logger.Info("index rebuilt", "blocks", indexed)
	return nil
}
