// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"
)

// Errors that the engine interface may return.  Backends translate their
// native errors to these so callers never depend on a concrete backend.
var (
	// ErrKeyNotFound is returned by Get when no value is stored under the
	// requested key.
	ErrKeyNotFound = errors.New("engine: key not found")

	// ErrClosed is returned by any operation on an engine that has
	// already been closed.
	ErrClosed = errors.New("engine: closed")

	// ErrIterReleased is returned by iterator operations after Release.
	ErrIterReleased = errors.New("engine: iterator released")

	// ErrInvalidBatch is returned by Write when the supplied batch was
	// not created by the engine it is being committed to.
	ErrInvalidBatch = errors.New("engine: batch from different backend")
)

// Engine represents an ordered key/value store.  All implementations must be
// safe for concurrent use by multiple goroutines; writers on separate handles
// are serialized by the backend.
type Engine interface {
	// Get returns the value stored under key.  ErrKeyNotFound is
	// returned when the key does not exist.
	Get(key []byte) ([]byte, error)

	// Has returns whether a value is stored under key.
	Has(key []byte) (bool, error)

	// Put stores value under key, replacing any existing value.
	Put(key, value []byte) error

	// Delete removes the value stored under key.  Deleting a nonexistent
	// key is not an error.
	Delete(key []byte) error

	// NewIterator returns an iterator positioned before the first key
	// greater than or equal to start.  The caller must call Release when
	// done with it.
	NewIterator(start []byte) Iterator

	// NewBatch returns an empty write batch bound to this engine.
	NewBatch() Batch

	// Write atomically applies all mutations in the batch.  Either every
	// mutation becomes durable or none do.
	Write(batch Batch) error

	// Close releases all resources held by the engine, including any
	// block cache and filter policy it owns.
	Close() error
}

// Batch buffers an ordered sequence of mutations for atomic application via
// Engine.Write.  A batch is not safe for concurrent use.
type Batch interface {
	// Put queues a key/value store operation.
	Put(key, value []byte)

	// Delete queues a key removal.
	Delete(key []byte)

	// Count returns the number of queued mutations.
	Count() int

	// Reset discards all queued mutations.
	Reset()

	// Replay invokes the handler for every queued mutation in the order
	// the mutations were queued.
	Replay(handler BatchHandler) error
}

// BatchHandler receives mutations during Batch.Replay.
type BatchHandler interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// Iterator iterates the keys of an engine in lexicographic order.
type Iterator interface {
	// First moves the iterator to the first key/value pair and returns
	// whether such a pair exists.
	First() bool

	// Seek moves the iterator to the first key/value pair whose key is
	// greater than or equal to the given key and returns whether such a
	// pair exists.
	Seek(key []byte) bool

	// Next moves the iterator to the next key/value pair.  It returns
	// false when the iterator is exhausted.
	Next() bool

	// Valid returns whether the iterator is positioned at a key/value
	// pair.
	Valid() bool

	// Key returns the key of the current pair, or nil if done.  The
	// returned slice may be reused by the next positioning call.
	Key() []byte

	// Value returns the value of the current pair, or nil if done.  The
	// returned slice may be reused by the next positioning call.
	Value() []byte

	// Error returns any accumulated error.  Exhausting the keys is not
	// an error.
	Error() error

	// Release releases the iterator.  It must be called exactly once on
	// every exit path of the owning operation.
	Release()
}

// Options configures a backend at open time.
type Options struct {
	// Create indicates a missing store should be created.  When false,
	// opening a nonexistent store fails.
	Create bool

	// CacheSizeMiB is the size of the backend block cache in MiB.  Zero
	// selects DefaultCacheSizeMiB.
	CacheSizeMiB int
}

// DefaultCacheSizeMiB is the block cache size used when the caller does not
// override it.
const DefaultCacheSizeMiB = 25

// Driver defines a backend database driver.
type Driver struct {
	// DbType identifies the driver, e.g. "leveldb".
	DbType string

	// Open opens (and optionally creates) the store rooted at path.
	Open func(path string, opts *Options) (Engine, error)
}

// driverList holds all registered database backends.
var driverList = make(map[string]*Driver)

// RegisterDriver adds a backend database driver to available interfaces.
// An error is returned if the driver type has already been registered.
func RegisterDriver(driver Driver) error {
	if _, exists := driverList[driver.DbType]; exists {
		return fmt.Errorf("driver %q is already registered",
			driver.DbType)
	}

	driverList[driver.DbType] = &driver
	return nil
}

// SupportedDrivers returns a slice of strings that represent the database
// drivers that have been registered and are therefore supported.
func SupportedDrivers() []string {
	supportedDBs := make([]string, 0, len(driverList))
	for _, drv := range driverList {
		supportedDBs = append(supportedDBs, drv.DbType)
	}
	return supportedDBs
}

// Open opens the store of the given type rooted at path.  An error is
// returned when the driver is not registered or the backend fails to open.
func Open(dbType, path string, opts *Options) (Engine, error) {
	drv, exists := driverList[dbType]
	if !exists {
		return nil, fmt.Errorf("driver %q is not registered", dbType)
	}

	if opts == nil {
		opts = &Options{}
	}
	return drv.Open(path, opts)
}
