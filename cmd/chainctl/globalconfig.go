// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/neutronsuite/neutrond/chainindex"
	"github.com/neutronsuite/neutrond/database/engine"
	_ "github.com/neutronsuite/neutrond/database/engine/leveldb"
	_ "github.com/neutronsuite/neutrond/database/engine/pebbledb"
)

var (
	neutrondHomeDir = btcutil.AppDataDir("neutrond", false)
	knownDbTypes    = engine.SupportedDrivers()

	// Default global config.
	cfg = &config{
		DataDir: filepath.Join(neutrondHomeDir, "data"),
		DbType:  "leveldb",
		DbCache: engine.DefaultCacheSizeMiB,
		LogDir:  filepath.Join(neutrondHomeDir, "logs"),
	}
)

// config defines the global configuration options.
type config struct {
	DataDir string `short:"b" long:"datadir" description:"Location of the neutrond data directory"`
	DbType  string `long:"dbtype" description:"Database backend to use for the chain index"`
	DbCache int    `long:"dbcache" description:"Database cache size in MiB"`
	LogDir  string `long:"logdir" description:"Directory to write rotated log files to"`
}

// validDbType returns whether or not dbType is a supported database type.
func validDbType(dbType string) bool {
	for _, knownType := range knownDbTypes {
		if dbType == knownType {
			return true
		}
	}

	return false
}

// setupGlobalConfig examines the global configuration options for any
// conditions which are invalid and performs the logging setup.
func setupGlobalConfig() error {
	// Validate database type.
	if !validDbType(cfg.DbType) {
		str := "the specified database type [%v] is invalid -- " +
			"supported types %v"
		return fmt.Errorf(str, cfg.DbType, knownDbTypes)
	}

	if cfg.DbCache <= 0 {
		return fmt.Errorf("the database cache size must be positive, "+
			"got %d", cfg.DbCache)
	}

	return initLogRotator(filepath.Join(cfg.LogDir, "chainctl.log"))
}

// openStore opens the chain index store in the configured data directory for
// inspection.
func openStore() (*chainindex.ChainDB, error) {
	log.Infof("Loading chain index from '%s'", cfg.DataDir)
	db, err := chainindex.Open(&chainindex.Options{
		DataDir:      cfg.DataDir,
		DbType:       cfg.DbType,
		ReadOnly:     true,
		CacheSizeMiB: cfg.DbCache,
	})
	if err != nil {
		return nil, err
	}

	log.Info("Chain index loaded")
	return db, nil
}
