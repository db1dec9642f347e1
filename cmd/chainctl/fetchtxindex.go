// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
)

// fetchTxIndexConfig defines the configuration options for the fetchtxindex
// command.
type fetchTxIndexConfig struct{}

// fetchTxIndexCfg defines the configuration options for the command.
var fetchTxIndexCfg = fetchTxIndexConfig{}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *fetchTxIndexConfig) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	if len(args) < 1 {
		return errors.New("required transaction hash parameter not " +
			"specified")
	}
	txHash, err := chainhash.NewHashFromStr(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	idx, err := db.ReadTxIndex(txHash)
	if err != nil {
		return err
	}
	if idx == nil {
		log.Infof("Transaction %v is not indexed", txHash)
		return nil
	}

	log.Infof("Transaction index for %v:\n%s", txHash, spew.Sdump(idx))
	return nil
}
