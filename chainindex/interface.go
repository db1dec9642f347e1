// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Block is one block payload read back from the external block files.
type Block interface {
	// Hash returns the block hash.
	Hash() *chainhash.Hash

	// Transactions returns the block's transactions in block order.
	Transactions() []Transaction

	// CheckBlock performs context-free validation of the block.  The
	// flags select proof-of-work, merkle root, and block signature
	// checking respectively.
	CheckBlock(checkPOW, checkMerkleRoot, checkSig bool) error
}

// Transaction is one transaction payload read back from the external block
// files.
type Transaction interface {
	// Hash returns the transaction hash.
	Hash() *chainhash.Hash

	// Inputs returns the outpoints consumed by the transaction.
	Inputs() []OutPoint

	// NumOutputs returns the number of outputs the transaction creates.
	NumOutputs() int

	// CheckTransaction performs context-free validation of the
	// transaction.
	CheckTransaction() error
}

// BlockSource reads block and transaction payloads from the external block
// files.  The store only holds positions; the payload bytes live outside it.
type BlockSource interface {
	// ReadBlock reads the block payload located by the index node.
	ReadBlock(node *BlockIndex) (Block, error)

	// ReadTransaction reads the transaction payload at the given disk
	// position.
	ReadTransaction(pos DiskTxPos) (Transaction, error)
}

// ChainHooks supplies the consensus operations the store consumes but does
// not implement.  Implementations live in the chain validation layer.
type ChainHooks interface {
	// CheckIndex validates a reconstructed index node.
	CheckIndex(node *BlockIndex) bool

	// BlockTrust returns the trust contributed by one block.
	BlockTrust(node *BlockIndex) *big.Int

	// StakeModifierChecksum returns the rolling stake modifier checksum
	// for the node.  The parent's checksum must already be set.
	StakeModifierChecksum(node *BlockIndex) uint32

	// CheckStakeModifierCheckpoint verifies a checksum against the
	// hard-coded height checkpoints.
	CheckStakeModifierCheckpoint(height int32, checksum uint32) bool

	// SetBestChain reorganizes the best chain so that node becomes the
	// tip.  All store writes run through db.
	SetBestChain(db *ChainDB, node *BlockIndex) error
}
