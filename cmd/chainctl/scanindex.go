// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/neutronsuite/neutrond/chainindex"
)

// scanIndexConfig defines the configuration options for the scanindex
// command.
type scanIndexConfig struct {
	CheckLevel  int   `long:"checklevel" description:"Consistency checks to run: 0 counts entries and walks the best chain, 1 adds parent link checks, 2 adds transaction position checks"`
	CheckBlocks int32 `long:"checkblocks" description:"Number of best-chain tail blocks to walk (0 = all)"`
}

// scanIndexCfg defines the configuration options for the command.
var scanIndexCfg = scanIndexConfig{
	CheckLevel: 1,
}

// blockPosition identifies a block payload by file number and byte offset.
type blockPosition struct {
	file     uint32
	blockPos uint32
}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *scanIndexConfig) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	entries := make(map[chainhash.Hash]*chainindex.BlockIndexEntry)
	positions := make(map[blockPosition]struct{})
	err = db.ForEachBlockIndex(func(hash *chainhash.Hash,
		entry *chainindex.BlockIndexEntry) error {

		entries[*hash] = entry
		positions[blockPosition{entry.File, entry.BlockPos}] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}
	log.Infof("Scanned %d block index entries in %v", len(entries),
		time.Since(start))

	problems := 0
	zeroHash := chainhash.Hash{}
	if cmd.CheckLevel > 0 {
		for hash, entry := range entries {
			if entry.HashPrev == zeroHash {
				continue
			}
			if _, ok := entries[entry.HashPrev]; !ok {
				log.Warnf("[WARNING] block %v at height %d "+
					"has unknown parent %v", hash,
					entry.Height, entry.HashPrev)
				problems++
			}
		}
	}

	bestHash, err := db.ReadBestChain()
	if err != nil {
		return err
	}
	if bestHash != nil {
		walked := int32(0)
		for hash := *bestHash; hash != zeroHash; {
			entry, ok := entries[hash]
			if !ok {
				log.Warnf("[WARNING] best chain walk reached "+
					"unknown block %v", hash)
				problems++
				break
			}
			walked++
			if cmd.CheckBlocks > 0 && walked >= cmd.CheckBlocks {
				break
			}
			hash = entry.HashPrev
		}
		log.Infof("Walked %d best-chain blocks from tip %v", walked,
			bestHash)
	}

	if cmd.CheckLevel > 1 {
		numTxs := 0
		err = db.ForEachTxIndex(func(txHash *chainhash.Hash,
			idx *chainindex.TxIndex) error {

			numTxs++
			pos := blockPosition{idx.Pos.File, idx.Pos.BlockPos}
			if _, ok := positions[pos]; !ok {
				log.Warnf("[WARNING] transaction %v indexed "+
					"at unknown position %v", txHash,
					idx.Pos)
				problems++
			}
			for _, spend := range idx.Spent {
				if spend.IsNull() {
					continue
				}
				spendPos := blockPosition{spend.File,
					spend.BlockPos}
				if _, ok := positions[spendPos]; !ok {
					log.Warnf("[WARNING] transaction %v "+
						"has a spend at unknown "+
						"position %v", txHash, spend)
					problems++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Infof("Checked %d transaction index entries", numTxs)
	}

	if problems != 0 {
		return fmt.Errorf("found %d inconsistencies", problems)
	}
	log.Infof("Scan completed in %v with no inconsistencies",
		time.Since(start))
	return nil
}
