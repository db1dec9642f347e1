// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Config carries everything LoadBlockIndex needs: the store handle, the
// chain state to populate, the consensus collaborators, and the verifier
// knobs.
type Config struct {
	// DB is the store handle all reads and rollback writes go through.
	DB *ChainDB

	// State receives the reconstructed graph and best-chain summary.
	State *ChainState

	// Hooks supplies the consensus operations.
	Hooks ChainHooks

	// Blocks reads block and transaction payloads for the verifier.
	Blocks BlockSource

	// GenesisHash identifies the genesis block of the active network.
	GenesisHash chainhash.Hash

	// CheckLevel selects the verifier stringency, 0 through 7.
	CheckLevel int

	// CheckDepth bounds the verifier walk: it checks best-chain blocks
	// from the tip down to height BestHeight-CheckDepth, and never the
	// genesis block.  Zero means unlimited.
	CheckDepth int32

	// Interrupt is closed when the process is shutting down.  The loader
	// and verifier poll it and stop cleanly.
	Interrupt <-chan struct{}
}

// Default verifier knobs.
const (
	DefaultCheckLevel = 1
	DefaultCheckDepth = 500
)

// interruptRequested returns whether the interrupt channel has been closed.
func interruptRequested(interrupt <-chan struct{}) bool {
	select {
	case <-interrupt:
		return true
	default:
	}
	return false
}

// LoadBlockIndex reconstructs the in-memory chain graph from the store and
// then verifies the tail of the best chain, rolling the best-chain pointer
// back when corruption is found.  A shutdown request observed at any point
// stops the work cleanly and returns success.
func LoadBlockIndex(cfg *Config) error {
	interrupted, err := loadBlockIndex(cfg)
	if err != nil || interrupted {
		return err
	}
	if cfg.State.Best == nil {
		return nil
	}
	return verifyChain(cfg)
}

// loadBlockIndex runs the reconstruction half: the blockindex scan, the
// derived-field pass, and the singleton loads.  The returned flag reports
// whether a shutdown request cut the work short.
func loadBlockIndex(cfg *Config) (bool, error) {
	state := cfg.State

	// Already loaded once.
	if len(state.Index) > 0 {
		return false, nil
	}

	interrupted, err := scanBlockIndex(cfg)
	if err != nil {
		return false, err
	}
	if interrupted {
		log.Infof("Block index scan interrupted by shutdown")
		return true, nil
	}

	if err := deriveChainFields(cfg); err != nil {
		return false, err
	}

	// Best chain pointer.  A store with no pointer and no genesis block
	// is a fresh node.
	bestHash, err := cfg.DB.ReadBestChain()
	if err != nil {
		return false, err
	}
	if bestHash == nil {
		if state.Lookup(&cfg.GenesisHash) == nil {
			return false, nil
		}
		return false, storeError(ErrMissingEntry, "best chain pointer "+
			"missing from a non-empty store", nil)
	}

	best := state.Lookup(bestHash)
	if best == nil {
		return false, storeError(ErrCorruption, fmt.Sprintf("best chain "+
			"pointer %v has no block index entry", bestHash), nil)
	}
	state.Best = best
	state.BestHeight = best.Height
	state.BestChainTrust = best.ChainTrust
	log.Infof("Best chain: hash=%v height=%d trust=%v supply=%v",
		best.Hash, best.Height, best.ChainTrust,
		btcutil.Amount(best.MoneySupply))

	// Sync checkpoint.  Absence from a non-empty store is fatal.
	checkpoint, err := cfg.DB.ReadSyncCheckpoint()
	if err != nil {
		return false, err
	}
	if checkpoint == nil {
		return false, storeError(ErrMissingEntry, "sync checkpoint "+
			"missing", nil)
	}
	state.SyncCheckpoint = *checkpoint
	log.Infof("Synchronized checkpoint %v", checkpoint)

	// Best invalid trust defaults to zero when absent.
	invalidTrust, err := cfg.DB.ReadBestInvalidTrust()
	if err != nil {
		return false, err
	}
	if invalidTrust != nil {
		state.BestInvalidTrust = invalidTrust
	}

	return false, nil
}

// scanBlockIndex iterates every stored blockindex record and wires the
// in-memory graph.  The returned flag reports a shutdown request observed
// mid-scan.
func scanBlockIndex(cfg *Config) (bool, error) {
	state := cfg.State

	iter := cfg.DB.shared.NewIterator(keyTagPrefix(blockIndexKeyTag))
	defer iter.Release()

	for iter.Next() {
		if interruptRequested(cfg.Interrupt) {
			return true, nil
		}

		tag, blockHash, err := decodeTaggedKey(iter.Key())
		if err != nil {
			return false, storeError(ErrCorruption, "undecodable "+
				"store key", err)
		}
		if tag != blockIndexKeyTag {
			break
		}
		if blockHash == nil {
			return false, storeError(ErrCorruption, "block index "+
				"key without a hash", nil)
		}

		entry, derr := deserializeBlockIndexEntry(iter.Value())
		if derr != nil {
			return false, storeError(ErrCorruption,
				fmt.Sprintf("corrupt block index for %v",
					blockHash), derr)
		}

		node := state.InsertBlockIndex(blockHash)
		node.applyEntry(entry)
		node.Prev = state.InsertBlockIndex(&entry.HashPrev)
		node.Next = state.InsertBlockIndex(&entry.HashNext)

		if !cfg.Hooks.CheckIndex(node) {
			return false, storeError(ErrCorruption,
				fmt.Sprintf("block index check failed at "+
					"height %d", node.Height), nil)
		}

		if node.IsProofOfStake() {
			kernel := StakeKernel{
				Prevout: node.PrevoutStake,
				Time:    node.StakeTime,
			}
			state.StakeSeen[kernel] = struct{}{}
		}
	}
	if err := iter.Error(); err != nil {
		return false, storeError(ErrCorruption, "block index scan failed",
			err)
	}

	log.Infof("Loaded %d block index entries", len(state.Index))
	return false, nil
}

// deriveChainFields computes cumulative chain trust and the stake modifier
// checksum for every node in ascending height order and gates the checksums
// against the hard-coded checkpoints.
func deriveChainFields(cfg *Config) error {
	state := cfg.State

	sorted := make([]*BlockIndex, 0, len(state.Index))
	for _, node := range state.Index {
		sorted = append(sorted, node)
	}
	// The sort must be stable so equal heights keep a deterministic
	// order for the cumulative pass.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Height < sorted[j].Height
	})

	for _, node := range sorted {
		trust := cfg.Hooks.BlockTrust(node)
		if node.Prev != nil {
			node.ChainTrust.Add(node.Prev.ChainTrust, trust)
		} else {
			node.ChainTrust.Set(trust)
		}

		node.StakeModifierChecksum = cfg.Hooks.StakeModifierChecksum(node)
		if !cfg.Hooks.CheckStakeModifierCheckpoint(node.Height,
			node.StakeModifierChecksum) {

			return storeError(ErrCorruption, fmt.Sprintf("failed "+
				"stake modifier checkpoint at height=%d, "+
				"modifier=0x%016x", node.Height,
				node.StakeModifier), nil)
		}
	}
	return nil
}
