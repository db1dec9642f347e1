// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/dcrd/lru"
	"github.com/neutronsuite/neutrond/database/engine"
)

const (
	// DatabaseVersion is the schema version understood by this code.  A
	// stored version below it triggers a wipe and rebuild at open.
	DatabaseVersion int32 = 70509

	// ClientVersion is written into versioned records.
	ClientVersion int32 = 4000900

	// dbDirName is the store directory under the data directory.
	dbDirName = "txleveldb"

	// defaultDbType selects the backend when the caller does not.
	defaultDbType = "leveldb"

	// recentIndexSize bounds the cache of block-index hashes known to be
	// stored.
	recentIndexSize = 1024
)

// Options configures Open.
type Options struct {
	// DataDir is the node data directory.  The store lives in the
	// txleveldb subdirectory; companion blk files live directly in it.
	DataDir string

	// DbType selects the backend engine.  Empty selects leveldb.
	DbType string

	// Create indicates a missing store should be created and
	// initialized.
	Create bool

	// ReadOnly rejects all mutations through the returned handle.  The
	// underlying engine is still opened writable so the version gate can
	// rebuild a stale store.
	ReadOnly bool

	// CacheSizeMiB is the engine block cache size.  Zero selects the
	// engine default.
	CacheSizeMiB int
}

// sharedEngine is one opened engine plus the process-wide state shared by
// every handle on the same directory.
type sharedEngine struct {
	engine.Engine

	dataDir string
	refs    int

	// recentIndex caches block-index hashes known to be stored so
	// repeated membership probes skip the engine.
	recentIndex lru.Cache
}

var (
	openEnginesMtx sync.Mutex

	// openEngines holds the one shared engine per data directory.
	openEngines = make(map[string]*sharedEngine)
)

// ChainDB is a handle on the chain-index store.  A handle is not safe for
// concurrent use; open one handle per goroutine.  Handles on the same data
// directory share one engine.
type ChainDB struct {
	shared   *sharedEngine
	readOnly bool
	closed   bool

	// activeBatch buffers mutations between StartBatch and CommitBatch.
	activeBatch engine.Batch
}

// Open opens (and optionally creates) the chain-index store under the data
// directory and returns a handle on it.
func Open(opts *Options) (*ChainDB, error) {
	if opts == nil || opts.DataDir == "" {
		return nil, storeError(ErrDbOpen, "no data directory", nil)
	}

	shared, err := acquireEngine(opts)
	if err != nil {
		return nil, err
	}
	return &ChainDB{shared: shared, readOnly: opts.ReadOnly}, nil
}

// acquireEngine returns the shared engine for the data directory, opening
// and version-gating it on first acquisition.
func acquireEngine(opts *Options) (*sharedEngine, error) {
	openEnginesMtx.Lock()
	defer openEnginesMtx.Unlock()

	if shared, ok := openEngines[opts.DataDir]; ok {
		shared.refs++
		return shared, nil
	}

	dbType := opts.DbType
	if dbType == "" {
		dbType = defaultDbType
	}
	dbPath := filepath.Join(opts.DataDir, dbDirName)

	eopts := &engine.Options{
		Create:       opts.Create,
		CacheSizeMiB: opts.CacheSizeMiB,
	}
	eng, err := engine.Open(dbType, dbPath, eopts)
	if err != nil {
		return nil, storeError(ErrDbOpen, fmt.Sprintf("failed to open "+
			"store at %s", dbPath), err)
	}
	log.Infof("Opened %s chain-index store at %s", dbType, dbPath)

	eng, err = checkVersion(eng, dbType, opts.DataDir, dbPath, eopts,
		opts.Create)
	if err != nil {
		return nil, err
	}

	shared := &sharedEngine{
		Engine:      eng,
		dataDir:     opts.DataDir,
		refs:        1,
		recentIndex: lru.NewCache(recentIndexSize),
	}
	openEngines[opts.DataDir] = shared
	return shared, nil
}

// checkVersion enforces the schema version gate on a freshly opened engine.
// A fresh store is stamped with the current version.  A store written by an
// older version is wiped together with the companion blk files and rebuilt.
func checkVersion(eng engine.Engine, dbType, dataDir, dbPath string,
	eopts *engine.Options, create bool) (engine.Engine, error) {

	versionKey := singletonKey(versionKeyName)
	serialized, err := eng.Get(versionKey)
	if err == engine.ErrKeyNotFound {
		if !create {
			eng.Close()
			return nil, storeError(ErrDbOpen, "store has no version "+
				"entry", nil)
		}
		err := eng.Put(versionKey, serializeInt32(DatabaseVersion))
		if err != nil {
			eng.Close()
			return nil, storeError(ErrDbOpen, "failed to write "+
				"version", err)
		}
		return eng, nil
	} else if err != nil {
		eng.Close()
		return nil, storeError(ErrDbOpen, "failed to read version", err)
	}

	version, derr := deserializeInt32(serialized)
	if derr != nil {
		eng.Close()
		return nil, storeError(ErrCorruption, "corrupt version entry",
			derr)
	}
	if version >= DatabaseVersion {
		return eng, nil
	}

	// Stale schema.  Remove the store and the companion block files,
	// then recreate from scratch.
	log.Warnf("Store version %d is below %d, rebuilding", version,
		DatabaseVersion)
	if err := eng.Close(); err != nil {
		return nil, storeError(ErrDbOpen, "failed to close stale store",
			err)
	}
	if err := os.RemoveAll(dbPath); err != nil {
		return nil, storeError(ErrDbOpen, "failed to remove stale store",
			err)
	}
	if err := sweepBlockFiles(dataDir); err != nil {
		return nil, storeError(ErrDbOpen, "failed to remove block files",
			err)
	}

	freshOpts := *eopts
	freshOpts.Create = true
	eng, err = engine.Open(dbType, dbPath, &freshOpts)
	if err != nil {
		return nil, storeError(ErrDbOpen, "failed to recreate store",
			err)
	}
	if err := eng.Put(versionKey, serializeInt32(DatabaseVersion)); err != nil {
		eng.Close()
		return nil, storeError(ErrDbOpen, "failed to write version", err)
	}
	return eng, nil
}

// sweepBlockFiles removes blk0001.dat, blk0002.dat and so on until the first
// missing file.
func sweepBlockFiles(dataDir string) error {
	for i := 1; ; i++ {
		name := filepath.Join(dataDir, fmt.Sprintf("blk%04d.dat", i))
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return nil
		}
		if err := os.Remove(name); err != nil {
			return err
		}
		log.Debugf("Removed stale block file %s", name)
	}
}

// ReadOnly returns whether the handle rejects mutations.
func (d *ChainDB) ReadOnly() bool {
	return d.readOnly
}

// Close releases the handle.  Any pending batch is discarded.  The shared
// engine closes when the last handle on its directory is released.
func (d *ChainDB) Close() error {
	if d.closed {
		return storeError(ErrDbClosed, "handle already closed", nil)
	}
	d.closed = true
	d.activeBatch = nil

	openEnginesMtx.Lock()
	defer openEnginesMtx.Unlock()

	d.shared.refs--
	if d.shared.refs > 0 {
		return nil
	}
	delete(openEngines, d.shared.dataDir)
	if err := d.shared.Engine.Close(); err != nil {
		return storeError(ErrDbOpen, "failed to close engine", err)
	}
	return nil
}

// read returns the value stored under key, consulting the pending batch
// first.  The found result is false when the key is absent.
func (d *ChainDB) read(key []byte) ([]byte, bool, error) {
	if d.closed {
		return nil, false, storeError(ErrDbClosed, "handle closed", nil)
	}

	if d.activeBatch != nil {
		scanner := batchScanner{target: key}
		if err := d.activeBatch.Replay(&scanner); err != nil {
			return nil, false, storeError(ErrCorruption,
				"batch replay failed", err)
		}
		if scanner.found {
			if scanner.deleted {
				return nil, false, nil
			}
			return scanner.value, true, nil
		}
	}

	value, err := d.shared.Get(key)
	if err == engine.ErrKeyNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// exists returns whether a value is stored under key, consulting the pending
// batch first.
func (d *ChainDB) exists(key []byte) (bool, error) {
	_, found, err := d.read(key)
	return found, err
}

// write stores value under key, into the pending batch when one is active.
func (d *ChainDB) write(key, value []byte) error {
	if d.closed {
		return storeError(ErrDbClosed, "handle closed", nil)
	}
	if d.readOnly {
		return storeError(ErrReadOnly, "handle is read-only", nil)
	}

	if d.activeBatch != nil {
		d.activeBatch.Put(key, value)
		return nil
	}
	return d.shared.Put(key, value)
}

// erase removes the value stored under key, through the pending batch when
// one is active.
func (d *ChainDB) erase(key []byte) error {
	if d.closed {
		return storeError(ErrDbClosed, "handle closed", nil)
	}
	if d.readOnly {
		return storeError(ErrReadOnly, "handle is read-only", nil)
	}

	if d.activeBatch != nil {
		d.activeBatch.Delete(key)
		return nil
	}
	return d.shared.Delete(key)
}
