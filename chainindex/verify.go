// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// blockFilePos identifies a block payload by file number and byte offset.
type blockFilePos struct {
	file     uint32
	blockPos uint32
}

// verifyChain walks the tail of the best chain performing the integrity
// checks selected by CheckLevel, records the deepest ancestor above any
// corruption, and rolls the best chain back to it.  Corruption is logged
// rather than returned so one pass reports every bad block; only unreadable
// payloads and store failures abort the walk.
func verifyChain(cfg *Config) error {
	state := cfg.State
	best := state.Best
	if best == nil {
		return nil
	}

	checkLevel := cfg.CheckLevel
	if checkLevel < 0 {
		checkLevel = 0
	} else if checkLevel > 7 {
		checkLevel = 7
	}
	checkDepth := cfg.CheckDepth
	if checkDepth == 0 {
		checkDepth = 1000000000
	}
	if checkDepth > state.BestHeight {
		checkDepth = state.BestHeight
	}
	log.Infof("Verifying last %d blocks at level %d", checkDepth,
		checkLevel)

	// The walk is tip-down, so every overwrite of fork leaves the
	// deepest corrupt block's parent.
	var fork *BlockIndex
	blockPos := make(map[blockFilePos]*BlockIndex)

	for node := best; node != nil && node.Prev != nil; node = node.Prev {
		if interruptRequested(cfg.Interrupt) ||
			node.Height < state.BestHeight-checkDepth {

			break
		}

		block, err := cfg.Blocks.ReadBlock(node)
		if err != nil {
			return storeError(ErrCorruption, fmt.Sprintf("failed to "+
				"read block at height %d", node.Height), err)
		}

		// Level 1 validates the block itself; level 7 extends the
		// validation to the block signature.
		if checkLevel > 0 {
			err := block.CheckBlock(true, true, checkLevel > 6)
			if err != nil {
				log.Warnf("[WARNING] found bad block at %d, "+
					"hash=%v: %v", node.Height, node.Hash,
					err)
				fork = node.Prev
			}
		}

		if checkLevel > 1 {
			pos := blockFilePos{node.File, node.BlockPos}
			blockPos[pos] = node

			for _, tx := range block.Transactions() {
				if err := verifyTransaction(cfg, node, tx,
					blockPos, &fork); err != nil {

					return err
				}
			}
		}
	}

	if fork == nil || interruptRequested(cfg.Interrupt) {
		return nil
	}

	// Roll the best chain pointer back to the deepest clean ancestor.
	log.Warnf("[WARNING] moving best chain pointer back to block %d",
		fork.Height)
	if _, err := cfg.Blocks.ReadBlock(fork); err != nil {
		return storeError(ErrCorruption, fmt.Sprintf("failed to read "+
			"fork block at height %d", fork.Height), err)
	}

	if err := cfg.DB.StartBatch(); err != nil {
		return err
	}
	if err := cfg.Hooks.SetBestChain(cfg.DB, fork); err != nil {
		cfg.DB.AbortBatch()
		return err
	}
	return cfg.DB.CommitBatch()
}

// verifyTransaction performs the level 2 through 6 checks for one
// transaction of a scanned block.
func verifyTransaction(cfg *Config, node *BlockIndex, tx Transaction,
	blockPos map[blockFilePos]*BlockIndex, fork **BlockIndex) error {

	checkLevel := cfg.CheckLevel
	hashTx := tx.Hash()

	txindex, err := cfg.DB.ReadTxIndex(hashTx)
	if err != nil {
		return err
	}
	if txindex != nil {
		// Level 2 requires the recorded position to agree with the
		// block being scanned.  A mismatch, or any scan at level 3 and
		// above, re-reads the transaction from the recorded position.
		mislocated := txindex.Pos.File != node.File ||
			txindex.Pos.BlockPos != node.BlockPos
		if checkLevel > 2 || mislocated {
			txFound, err := cfg.Blocks.ReadTransaction(txindex.Pos)
			switch {
			case err != nil:
				log.Warnf("[WARNING] cannot read mislocated "+
					"transaction %v", hashTx)
				*fork = node.Prev

			case *txFound.Hash() != *hashTx:
				// A matching hash would mean a benign
				// duplicate of the transaction.
				log.Warnf("[WARNING] invalid tx position for "+
					"%v", hashTx)
				*fork = node.Prev
			}
		}

		// Level 4 requires every recorded spend to land inside the
		// scanned tail; level 6 validates the spending transaction.
		if checkLevel > 3 {
			for output, spendPos := range txindex.Spent {
				if spendPos.IsNull() {
					continue
				}

				posFind := blockFilePos{spendPos.File,
					spendPos.BlockPos}
				if _, ok := blockPos[posFind]; !ok {
					log.Warnf("[WARNING] found bad spend "+
						"at %d, hashBlock=%v, "+
						"hashTx=%v", node.Height,
						node.Hash, hashTx)
					*fork = node.Prev
				}

				if checkLevel > 5 {
					verifySpend(cfg, node, hashTx,
						uint32(output), spendPos, fork)
				}
			}
		}
	}

	// Level 5 requires every prevout consumed by the transaction to be
	// marked spent in its own tx index entry.
	if checkLevel > 4 {
		for _, prevout := range tx.Inputs() {
			previndex, err := cfg.DB.ReadTxIndex(&prevout.Hash)
			if err != nil {
				return err
			}
			if previndex == nil {
				continue
			}
			n := int(prevout.Index)
			if n >= len(previndex.Spent) || previndex.Spent[n].IsNull() {
				log.Warnf("[WARNING] found unspent prevout "+
					"%v:%d in %v", prevout.Hash,
					prevout.Index, hashTx)
				*fork = node.Prev
			}
		}
	}

	return nil
}

// verifySpend performs the level 6 check on one recorded spend: the spending
// transaction must read back, validate, and name the spent output.
func verifySpend(cfg *Config, node *BlockIndex, hashTx *chainhash.Hash,
	output uint32, spendPos DiskTxPos, fork **BlockIndex) {

	txSpend, err := cfg.Blocks.ReadTransaction(spendPos)
	if err != nil {
		log.Warnf("[WARNING] cannot read spending transaction of "+
			"%v:%d from disk", hashTx, output)
		*fork = node.Prev
		return
	}
	if err := txSpend.CheckTransaction(); err != nil {
		log.Warnf("[WARNING] spending transaction of %v:%d is invalid: "+
			"%v", hashTx, output, err)
		*fork = node.Prev
		return
	}

	for _, prevout := range txSpend.Inputs() {
		if prevout.Hash == *hashTx && prevout.Index == output {
			return
		}
	}
	log.Warnf("[WARNING] spending transaction of %v:%d does not spend it",
		hashTx, output)
	*fork = node.Prev
}
