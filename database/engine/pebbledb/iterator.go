// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/cockroachdb/pebble"
	"github.com/neutronsuite/neutrond/database/engine"
)

// Iterator adapts a native pebble iterator to the engine contract.  The zero
// value with released set is a degenerate iterator used when the engine has
// already been closed.
type Iterator struct {
	*pebble.Iterator

	positioned bool
	released   bool
	err        error
}

func (i *Iterator) First() bool {
	if i.released {
		return false
	}
	i.positioned = true
	return i.Iterator.First()
}

func (i *Iterator) Seek(key []byte) bool {
	if i.released {
		return false
	}
	i.positioned = true
	return i.Iterator.SeekGE(key)
}

// Next advances the iterator.  A fresh iterator sits before the first entry,
// so the initial call lands on it.
func (i *Iterator) Next() bool {
	if i.released {
		return false
	}
	if !i.positioned {
		return i.First()
	}
	return i.Iterator.Next()
}

func (i *Iterator) Valid() bool {
	if i.released {
		return false
	}
	return i.Iterator.Valid()
}

func (i *Iterator) Key() []byte {
	if i.released || !i.Iterator.Valid() {
		return nil
	}
	return i.Iterator.Key()
}

func (i *Iterator) Value() []byte {
	if i.released || !i.Iterator.Valid() {
		return nil
	}
	return i.Iterator.Value()
}

func (i *Iterator) Release() {
	if !i.released {
		i.released = true
		i.Iterator.Close()
	}
}

func (i *Iterator) Error() error {
	if i.err != nil {
		return i.err
	}
	if i.released {
		return engine.ErrIterReleased
	}
	return i.Iterator.Error()
}
