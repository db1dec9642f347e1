// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"github.com/neutronsuite/neutrond/database/engine"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const dbType = "leveldb"

func init() {
	driver := engine.Driver{
		DbType: dbType,
		Open:   openDB,
	}
	if err := engine.RegisterDriver(driver); err != nil {
		panic("failed to register leveldb driver: " + err.Error())
	}
}

func openDB(dbPath string, eopts *engine.Options) (engine.Engine, error) {
	cacheMiB := eopts.CacheSizeMiB
	if cacheMiB <= 0 {
		cacheMiB = engine.DefaultCacheSizeMiB
	}

	opts := opt.Options{
		ErrorIfMissing:     !eopts.Create,
		BlockCacheCapacity: cacheMiB * opt.MiB,
		Filter:             filter.NewBloomFilter(10),
		Strict:             opt.DefaultStrict,
		Compression:        opt.NoCompression,
	}
	ldb, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertErr(err)
	}
	return &DB{DB: ldb}, nil
}

// convertErr maps goleveldb errors to engine errors where an engine-level
// equivalent exists.
func convertErr(err error) error {
	switch {
	case err == leveldb.ErrNotFound:
		return engine.ErrKeyNotFound
	case err == leveldb.ErrClosed:
		return engine.ErrClosed
	case ldberrors.IsCorrupted(err):
		return err
	}
	return err
}

// DB is a leveldb-backed engine.
type DB struct {
	*leveldb.DB
}

func (d *DB) Get(key []byte) ([]byte, error) {
	val, err := d.DB.Get(key, nil)
	if err != nil {
		return nil, convertErr(err)
	}
	return val, nil
}

func (d *DB) Has(key []byte) (bool, error) {
	has, err := d.DB.Has(key, nil)
	if err != nil {
		return false, convertErr(err)
	}
	return has, nil
}

func (d *DB) Put(key, value []byte) error {
	return convertErr(d.DB.Put(key, value, nil))
}

func (d *DB) Delete(key []byte) error {
	return convertErr(d.DB.Delete(key, nil))
}

func (d *DB) NewIterator(start []byte) engine.Iterator {
	// goleveldb iterators satisfy the engine iterator contract directly.
	return d.DB.NewIterator(&util.Range{Start: start}, nil)
}

func (d *DB) NewBatch() engine.Batch {
	return &Batch{Batch: new(leveldb.Batch)}
}

func (d *DB) Write(batch engine.Batch) error {
	lb, ok := batch.(*Batch)
	if !ok {
		return engine.ErrInvalidBatch
	}
	return convertErr(d.DB.Write(lb.Batch, nil))
}

func (d *DB) Close() error {
	return convertErr(d.DB.Close())
}

// Batch wraps a native leveldb write batch.
type Batch struct {
	*leveldb.Batch
}

func (b *Batch) Count() int {
	return b.Batch.Len()
}

func (b *Batch) Replay(handler engine.BatchHandler) error {
	// engine.BatchHandler is method-compatible with leveldb.BatchReplay.
	return b.Batch.Replay(handler)
}
