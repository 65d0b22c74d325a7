// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sequence implements dynamic sequences: named monotonic counters
// with an auxiliary data string holding the id of the last chained record.
// Every per-stream previousId chain in the ledger hangs off one of these.
package sequence

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/norsh"
)

var logger = log.WithContext("pkg", "sequence")

// DynamicSequence is the persisted counter document.
type DynamicSequence struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence"`
	Data     string `json:"data,omitempty"`
}

// Store reads and writes dynamic sequences. Get is the only operation
// guaranteed to observe a consistent Data; combining reads with updates
// needs an enclosing semaphore.
type Store struct {
	col *docdb.Collection
}

// NewStore creates a sequence store on the given document store.
func NewStore(store *docdb.Store) *Store {
	return &Store{col: store.Collection(norsh.CollectionSequences)}
}

// Exists reports whether the sequence document has ever been created. The
// bootstrap uses this as its has-run sentinel.
func (s *Store) Exists(id string) (bool, error) {
	return s.col.Exists(id)
}

// Get returns the sequence, lazily creating {sequence: 0} when absent.
func (s *Store) Get(id string) (*DynamicSequence, error) {
	var seq DynamicSequence
	err := s.col.Get(id, &seq)
	if docdb.IsNotFound(err) {
		seq = DynamicSequence{ID: id}
		if err := s.col.Put(id, &seq); err != nil {
			return nil, err
		}
		logger.Debug("created dynamic sequence", "id", id)
		return &seq, nil
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// update is the single document-atomic write path behind Set and Inc.
// A nil data leaves the field alone; an empty string unsets it.
func (s *Store) update(id string, sequence *int64, data *string, increment bool) error {
	return s.col.Update(id, func(raw []byte) (any, error) {
		seq := DynamicSequence{ID: id}
		if raw != nil {
			if err := json.Unmarshal(raw, &seq); err != nil {
				return nil, errors.Wrapf(err, "decode sequence [%v]", id)
			}
		}
		if increment {
			seq.Sequence++
		} else if sequence != nil {
			seq.Sequence = *sequence
		}
		if data != nil {
			seq.Data = *data
		}
		return &seq, nil
	})
}

// Set assigns the provided fields. Nil leaves a field untouched; an empty
// data string unsets it.
func (s *Store) Set(id string, sequence *int64, data *string) error {
	return s.update(id, sequence, data, false)
}

// SetData assigns only the data field.
func (s *Store) SetData(id, data string) error {
	return s.update(id, nil, &data, false)
}

// Inc atomically increments the counter, optionally assigning data.
func (s *Store) Inc(id string, data *string) error {
	return s.update(id, nil, data, true)
}
