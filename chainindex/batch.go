// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"bytes"
)

// batchScanner walks a pending batch looking for the most recent mutation of
// one key.  It implements engine.BatchHandler; later mutations overwrite
// earlier ones during replay so the final state wins.
type batchScanner struct {
	target []byte

	found   bool
	deleted bool
	value   []byte
}

func (s *batchScanner) Put(key, value []byte) {
	if !bytes.Equal(key, s.target) {
		return
	}
	s.found = true
	s.deleted = false
	s.value = append(s.value[:0], value...)
}

func (s *batchScanner) Delete(key []byte) {
	if !bytes.Equal(key, s.target) {
		return
	}
	s.found = true
	s.deleted = true
	s.value = nil
}

// StartBatch begins buffering mutations on the handle.  Reads through the
// handle observe the buffered mutations.  At most one batch may be active
// per handle.
func (d *ChainDB) StartBatch() error {
	if d.closed {
		return storeError(ErrDbClosed, "handle closed", nil)
	}
	if d.readOnly {
		return storeError(ErrReadOnly, "handle is read-only", nil)
	}
	if d.activeBatch != nil {
		return storeError(ErrBatchActive, "batch already active", nil)
	}

	d.activeBatch = d.shared.NewBatch()
	return nil
}

// CommitBatch atomically applies the pending batch.  The batch is discarded
// whether or not the commit succeeds.
func (d *ChainDB) CommitBatch() error {
	if d.closed {
		return storeError(ErrDbClosed, "handle closed", nil)
	}
	if d.activeBatch == nil {
		return storeError(ErrNoBatch, "no batch to commit", nil)
	}

	batch := d.activeBatch
	d.activeBatch = nil
	if err := d.shared.Write(batch); err != nil {
		return storeError(ErrCorruption, "batch commit failed", err)
	}
	return nil
}

// AbortBatch discards the pending batch without applying it.
func (d *ChainDB) AbortBatch() error {
	if d.closed {
		return storeError(ErrDbClosed, "handle closed", nil)
	}
	if d.activeBatch == nil {
		return storeError(ErrNoBatch, "no batch to abort", nil)
	}

	d.activeBatch = nil
	return nil
}

// BatchActive returns whether the handle has a pending batch.
func (d *ChainDB) BatchActive() bool {
	return d.activeBatch != nil
}
