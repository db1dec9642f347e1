// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/neutronsuite/neutrond/database/engine"
)

const dbType = "pebbledb"

func init() {
	driver := engine.Driver{
		DbType: dbType,
		Open:   openDB,
	}
	if err := engine.RegisterDriver(driver); err != nil {
		panic("failed to register pebbledb driver: " + err.Error())
	}
}

func openDB(dbPath string, eopts *engine.Options) (engine.Engine, error) {
	cacheMiB := eopts.CacheSizeMiB
	if cacheMiB <= 0 {
		cacheMiB = engine.DefaultCacheSizeMiB
	}

	opts := &pebble.Options{
		Cache:                    pebble.NewCache(int64(cacheMiB) * 1024 * 1024),
		ErrorIfNotExists:         !eopts.Create,
		MaxConcurrentCompactions: runtime.NumCPU,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 4 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 8 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 16 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 32 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 64 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
			{TargetFileSize: 128 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
		},
	}
	opts.Experimental.ReadSamplingMultiplier = -1

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

// DB is a pebble-backed engine.
type DB struct {
	*pebble.DB

	closed atomic.Bool
}

func (d *DB) Get(key []byte) ([]byte, error) {
	if d.closed.Load() {
		return nil, engine.ErrClosed
	}

	ori, closer, err := d.DB.Get(key)
	if err == pebble.ErrNotFound {
		return nil, engine.ErrKeyNotFound
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The returned slice is only valid until the closer is closed.
	val := make([]byte, len(ori))
	copy(val, ori)
	return val, nil
}

func (d *DB) Has(key []byte) (bool, error) {
	_, err := d.Get(key)
	if err == engine.ErrKeyNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DB) Put(key, value []byte) error {
	if d.closed.Load() {
		return engine.ErrClosed
	}
	return d.DB.Set(key, value, pebble.NoSync)
}

func (d *DB) Delete(key []byte) error {
	if d.closed.Load() {
		return engine.ErrClosed
	}
	return d.DB.Delete(key, pebble.NoSync)
}

func (d *DB) NewIterator(start []byte) engine.Iterator {
	if d.closed.Load() {
		return &Iterator{released: true}
	}

	iter, err := d.DB.NewIter(&pebble.IterOptions{LowerBound: start})
	if err != nil {
		return &Iterator{released: true, err: err}
	}
	return &Iterator{Iterator: iter}
}

func (d *DB) NewBatch() engine.Batch {
	return &Batch{Batch: d.DB.NewBatch()}
}

func (d *DB) Write(batch engine.Batch) error {
	pb, ok := batch.(*Batch)
	if !ok {
		return engine.ErrInvalidBatch
	}
	if d.closed.Load() {
		return engine.ErrClosed
	}
	return d.DB.Apply(pb.Batch, pebble.Sync)
}

func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return engine.ErrClosed
	}
	return d.DB.Close()
}

// Batch wraps a native pebble batch.
type Batch struct {
	*pebble.Batch
}

func (b *Batch) Put(key, value []byte) {
	b.Batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) {
	b.Batch.Delete(key, nil)
}

func (b *Batch) Count() int {
	return int(b.Batch.Count())
}

func (b *Batch) Reset() {
	b.Batch.Reset()
}

func (b *Batch) Replay(handler engine.BatchHandler) error {
	r := b.Batch.Reader()
	for {
		kind, key, value, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		switch kind {
		case pebble.InternalKeyKindSet:
			handler.Put(key, value)
		case pebble.InternalKeyKindDelete:
			handler.Delete(key)
		}
	}
}
