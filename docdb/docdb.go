// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package docdb is the document store of the worker: named collections of
// JSON documents keyed by string id, over a single leveldb instance.
// Composite keys are RLP-encoded (collection, id) pairs, which keeps them
// collision-free and makes every collection a contiguous key range.
package docdb

import (
	"encoding/json"
	"hash/maphash"
	"sync"

	"github.com/pkg/errors"
	"github.com/qianbin/drlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when no document has the given id.
var ErrNotFound = errors.New("docdb: not found")

// IsNotFound checks the error returned by Get.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// Options tunes the underlying leveldb instance.
type Options struct {
	CacheSizeMB            int
	OpenFilesCacheCapacity int
}

const updateStripes = 64

// Store owns the leveldb instance and the striped document locks that make
// Update atomic per document.
type Store struct {
	db    *leveldb.DB
	seed  maphash.Seed
	locks [updateStripes]sync.Mutex
}

// Open creates or opens a persistent store at path.
func Open(path string, opts Options) (*Store, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open docdb storage")
	}
	return openStore(stg, opts)
}

// OpenMem opens an in-memory store, for solo mode and tests.
func OpenMem() (*Store, error) {
	return openStore(storage.NewMemStorage(), Options{})
}

func openStore(stg storage.Storage, opts Options) (*Store, error) {
	cacheSize := opts.CacheSizeMB
	if cacheSize < 16 {
		cacheSize = 16
	}
	openFiles := opts.OpenFilesCacheCapacity
	if openFiles < 16 {
		openFiles = 16
	}

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: openFiles,
		BlockCacheCapacity:     cacheSize / 2 * opt.MiB,
		WriteBuffer:            cacheSize / 4 * opt.MiB, // two write buffers are used internally
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open docdb")
	}
	return &Store{db: db, seed: maphash.MakeSeed()}, nil
}

// Close closes the store. Later operations will all fail.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns a handle to the named collection. Collections need no
// creation; an unknown name is simply an empty one.
func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

func (s *Store) stripe(key []byte) *sync.Mutex {
	var h maphash.Hash
	h.SetSeed(s.seed)
	h.Write(key)
	return &s.locks[h.Sum64()%updateStripes]
}

// Collection is a named set of JSON documents with string id primary keys.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) key(id string) []byte {
	k := drlp.AppendString(nil, []byte(c.name))
	return drlp.AppendString(k, []byte(id))
}

func (c *Collection) keyRange() *util.Range {
	return util.BytesPrefix(drlp.AppendString(nil, []byte(c.name)))
}

// Get unmarshals the document with the given id into out. Returns
// ErrNotFound when absent.
func (c *Collection) Get(id string, out any) error {
	raw, err := c.store.db.Get(c.key(id), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrapf(err, "get %s/%s", c.name, id)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s/%s", c.name, id)
	}
	return nil
}

// Exists reports whether a document with the given id is present.
func (c *Collection) Exists(id string) (bool, error) {
	ok, err := c.store.db.Has(c.key(id), nil)
	if err != nil {
		return false, errors.Wrapf(err, "has %s/%s", c.name, id)
	}
	return ok, nil
}

// Put marshals doc and stores it under id, replacing any previous document.
func (c *Collection) Put(id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encode %s/%s", c.name, id)
	}
	if err := c.store.db.Put(c.key(id), raw, nil); err != nil {
		return errors.Wrapf(err, "put %s/%s", c.name, id)
	}
	return nil
}

// Delete removes the document with the given id. Deleting an absent id is
// not an error.
func (c *Collection) Delete(id string) error {
	if err := c.store.db.Delete(c.key(id), nil); err != nil {
		return errors.Wrapf(err, "delete %s/%s", c.name, id)
	}
	return nil
}

// Update atomically rewrites one document. fn receives the raw stored JSON,
// nil when the document is absent, and returns the replacement document; a
// nil replacement keeps the store unchanged. The per-document lock spans the
// read-modify-write, so concurrent Updates of one id serialize.
func (c *Collection) Update(id string, fn func(raw []byte) (any, error)) error {
	key := c.key(id)
	mu := c.store.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	raw, err := c.store.db.Get(key, nil)
	if err != nil && err != leveldb.ErrNotFound {
		return errors.Wrapf(err, "get %s/%s", c.name, id)
	}
	doc, err := fn(raw)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encode %s/%s", c.name, id)
	}
	if err := c.store.db.Put(key, out, nil); err != nil {
		return errors.Wrapf(err, "put %s/%s", c.name, id)
	}
	return nil
}

// UpdateWhere conditionally rewrites one document: when the document exists
// and pred accepts its raw JSON, the document produced by mutate replaces it
// and UpdateWhere reports true. Otherwise nothing changes and it reports
// false, mirroring an update-or-count of zero.
func (c *Collection) UpdateWhere(id string, pred func(raw []byte) bool, mutate func(raw []byte) (any, error)) (bool, error) {
	key := c.key(id)
	mu := c.store.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	raw, err := c.store.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return false, nil
		}
		return false, errors.Wrapf(err, "get %s/%s", c.name, id)
	}
	if !pred(raw) {
		return false, nil
	}
	doc, err := mutate(raw)
	if err != nil {
		return false, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return false, errors.Wrapf(err, "encode %s/%s", c.name, id)
	}
	if err := c.store.db.Put(key, out, nil); err != nil {
		return false, errors.Wrapf(err, "put %s/%s", c.name, id)
	}
	return true, nil
}

// Iterate walks the collection in key order, calling fn with each id and raw
// JSON document. fn returning false stops the walk.
func (c *Collection) Iterate(fn func(id string, raw []byte) bool) error {
	prefix := drlp.AppendString(nil, []byte(c.name))
	it := c.store.db.NewIterator(c.keyRange(), nil)
	defer it.Release()

	for it.Next() {
		id, ok := decodeID(it.Key(), len(prefix))
		if !ok {
			continue
		}
		val := make([]byte, len(it.Value()))
		copy(val, it.Value())
		if !fn(id, val) {
			break
		}
	}
	return errors.Wrapf(it.Error(), "iterate %s", c.name)
}

// Count returns the number of documents in the collection.
func (c *Collection) Count() (n int, err error) {
	err = c.Iterate(func(string, []byte) bool {
		n++
		return true
	})
	return
}

// decodeID strips the collection prefix and the RLP string header of the id
// component. Ids are shorter than 56 bytes would require a long-form header;
// both forms are handled.
func decodeID(key []byte, prefixLen int) (string, bool) {
	rest := key[prefixLen:]
	if len(rest) == 0 {
		return "", false
	}
	switch b := rest[0]; {
	case b < 0x80: // single byte string
		return string(rest), true
	case b <= 0xb7: // short string
		return string(rest[1:]), true
	case b <= 0xbf: // long string
		lenLen := int(b - 0xb7)
		if len(rest) < 1+lenLen {
			return "", false
		}
		return string(rest[1+lenLen:]), true
	default:
		return "", false
	}
}
