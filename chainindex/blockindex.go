// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Flags carried in the block index flags bitfield.  The values are stored on
// disk and must not change.
const (
	// FlagProofOfStake marks a block minted by staking rather than work.
	FlagProofOfStake uint32 = 1 << 0

	// FlagStakeEntropy carries the entropy bit used in stake modifier
	// generation.
	FlagStakeEntropy uint32 = 1 << 1

	// FlagStakeModifier indicates the stake modifier for this block has
	// been generated.
	FlagStakeModifier uint32 = 1 << 2
)

// BlockIndex is the in-memory form of one block's index entry.  Nodes are
// owned exclusively by the ChainState index map; Prev and Next are non-owning
// references into the same map.
type BlockIndex struct {
	// Hash is the block's own hash.  The index map key duplicates it.
	Hash chainhash.Hash

	// Prev and Next link the block into the chain graph.  Next is only
	// set along the best chain.
	Prev *BlockIndex
	Next *BlockIndex

	File     uint32
	BlockPos uint32
	Height   int32

	Mint        int64
	MoneySupply int64

	Flags         uint32
	StakeModifier uint64
	PrevoutStake  OutPoint
	StakeTime     uint32
	HashProof     chainhash.Hash

	// Block header fields.
	BlockVersion int32
	MerkleRoot   chainhash.Hash
	Time         uint32
	Bits         uint32
	Nonce        uint32

	// Derived fields computed by the loader.
	ChainTrust            *big.Int
	StakeModifierChecksum uint32
}

// newBlockIndex returns a blank node for the given hash with zero chain
// trust.
func newBlockIndex(hash *chainhash.Hash) *BlockIndex {
	return &BlockIndex{Hash: *hash, ChainTrust: new(big.Int)}
}

// IsProofOfStake returns whether the block was minted by staking.
func (node *BlockIndex) IsProofOfStake() bool {
	return node.Flags&FlagProofOfStake != 0
}

// IsProofOfWork returns whether the block was mined.
func (node *BlockIndex) IsProofOfWork() bool {
	return !node.IsProofOfStake()
}

// PrevHash returns the hash of the parent block, or the zero hash for
// genesis.
func (node *BlockIndex) PrevHash() chainhash.Hash {
	if node.Prev == nil {
		return chainhash.Hash{}
	}
	return node.Prev.Hash
}

// NextHash returns the hash of the best-chain successor, or the zero hash
// when the block is the tip or off the best chain.
func (node *BlockIndex) NextHash() chainhash.Hash {
	if node.Next == nil {
		return chainhash.Hash{}
	}
	return node.Next.Hash
}

// BlockPosition returns the disk position of the block payload with a zero
// transaction offset.
func (node *BlockIndex) BlockPosition() DiskTxPos {
	return DiskTxPos{File: node.File, BlockPos: node.BlockPos}
}

// String returns the node in human-readable form.
func (node *BlockIndex) String() string {
	return fmt.Sprintf("BlockIndex(height=%d, hash=%v)", node.Height,
		node.Hash)
}

// applyEntry copies the fixed fields of an on-disk record into the node.
// Graph links and derived fields are left to the loader.
func (node *BlockIndex) applyEntry(entry *BlockIndexEntry) {
	node.File = entry.File
	node.BlockPos = entry.BlockPos
	node.Height = entry.Height
	node.Mint = entry.Mint
	node.MoneySupply = entry.MoneySupply
	node.Flags = entry.Flags
	node.StakeModifier = entry.StakeModifier
	node.PrevoutStake = entry.PrevoutStake
	node.StakeTime = entry.StakeTime
	node.HashProof = entry.HashProof
	node.BlockVersion = entry.BlockVersion
	node.MerkleRoot = entry.MerkleRoot
	node.Time = entry.Time
	node.Bits = entry.Bits
	node.Nonce = entry.Nonce
}

// diskEntry builds the on-disk record for the node.  The parent and
// successor hashes are taken from the live graph links.
func (node *BlockIndex) diskEntry() *BlockIndexEntry {
	return &BlockIndexEntry{
		Version:       ClientVersion,
		HashNext:      node.NextHash(),
		File:          node.File,
		BlockPos:      node.BlockPos,
		Height:        node.Height,
		Mint:          node.Mint,
		MoneySupply:   node.MoneySupply,
		Flags:         node.Flags,
		StakeModifier: node.StakeModifier,
		PrevoutStake:  node.PrevoutStake,
		StakeTime:     node.StakeTime,
		HashProof:     node.HashProof,
		BlockVersion:  node.BlockVersion,
		HashPrev:      node.PrevHash(),
		MerkleRoot:    node.MerkleRoot,
		Time:          node.Time,
		Bits:          node.Bits,
		Nonce:         node.Nonce,
	}
}

// StakeKernel identifies a stake kernel as the staked outpoint plus the time
// it was used.
type StakeKernel struct {
	Prevout OutPoint
	Time    uint32
}

// ChainState owns the reconstructed chain graph and the best-chain summary
// values derived from it.  A single ChainState is threaded through the
// loader, the verifier, and the external chain hooks.
type ChainState struct {
	// Index maps every known block hash to its node.  The map owns all
	// nodes for the process lifetime.
	Index map[chainhash.Hash]*BlockIndex

	// StakeSeen records every stake kernel observed in the index.
	StakeSeen map[StakeKernel]struct{}

	// Best chain summary.
	Best             *BlockIndex
	BestHeight       int32
	BestChainTrust   *big.Int
	BestInvalidTrust *big.Int

	// SyncCheckpoint is the most recent signed checkpoint hash.
	SyncCheckpoint chainhash.Hash
}

// NewChainState returns an empty chain state.
func NewChainState() *ChainState {
	return &ChainState{
		Index:            make(map[chainhash.Hash]*BlockIndex),
		StakeSeen:        make(map[StakeKernel]struct{}),
		BestChainTrust:   new(big.Int),
		BestInvalidTrust: new(big.Int),
	}
}

// InsertBlockIndex returns the node for the given hash, creating a blank one
// on first sight.  The zero hash maps to nil so callers can pass parent and
// successor hashes straight from disk records.
func (s *ChainState) InsertBlockIndex(hash *chainhash.Hash) *BlockIndex {
	if *hash == (chainhash.Hash{}) {
		return nil
	}
	if node, ok := s.Index[*hash]; ok {
		return node
	}

	node := newBlockIndex(hash)
	s.Index[*hash] = node
	return node
}

// Lookup returns the node for the given hash, or nil when unknown.
func (s *ChainState) Lookup(hash *chainhash.Hash) *BlockIndex {
	return s.Index[*hash]
}

// IsInMainChain returns whether the node lies on the active best chain.
func (s *ChainState) IsInMainChain(node *BlockIndex) bool {
	return node.Next != nil || node == s.Best
}
