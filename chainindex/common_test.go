// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	_ "github.com/neutronsuite/neutrond/database/engine/leveldb"
)

// openTestDB opens a fresh writable store in a temporary directory and
// closes it when the test finishes.
func openTestDB(t *testing.T) (*ChainDB, string) {
	t.Helper()

	dataDir := t.TempDir()
	db, err := Open(&Options{DataDir: dataDir, Create: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if !db.closed {
			db.Close()
		}
	})
	return db, dataDir
}

// fakeTx is a Transaction stub with fixed fields.
type fakeTx struct {
	hash     chainhash.Hash
	inputs   []OutPoint
	numOuts  int
	checkErr error
}

func (tx *fakeTx) Hash() *chainhash.Hash    { return &tx.hash }
func (tx *fakeTx) Inputs() []OutPoint       { return tx.inputs }
func (tx *fakeTx) NumOutputs() int          { return tx.numOuts }
func (tx *fakeTx) CheckTransaction() error  { return tx.checkErr }

// fakeBlock is a Block stub with fixed transactions.
type fakeBlock struct {
	hash     chainhash.Hash
	txs      []Transaction
	checkErr error
}

func (b *fakeBlock) Hash() *chainhash.Hash       { return &b.hash }
func (b *fakeBlock) Transactions() []Transaction { return b.txs }
func (b *fakeBlock) CheckBlock(checkPOW, checkMerkleRoot, checkSig bool) error {
	return b.checkErr
}

// fakeBlockSource serves fake blocks by disk position and fake transactions
// by exact disk position.
type fakeBlockSource struct {
	blocks map[blockFilePos]*fakeBlock
	txs    map[DiskTxPos]*fakeTx
}

func newFakeBlockSource() *fakeBlockSource {
	return &fakeBlockSource{
		blocks: make(map[blockFilePos]*fakeBlock),
		txs:    make(map[DiskTxPos]*fakeTx),
	}
}

func (s *fakeBlockSource) ReadBlock(node *BlockIndex) (Block, error) {
	block, ok := s.blocks[blockFilePos{node.File, node.BlockPos}]
	if !ok {
		return nil, fmt.Errorf("no block at file %d pos %d", node.File,
			node.BlockPos)
	}
	return block, nil
}

func (s *fakeBlockSource) ReadTransaction(pos DiskTxPos) (Transaction, error) {
	tx, ok := s.txs[pos]
	if !ok {
		return nil, fmt.Errorf("no transaction at %s", pos.String())
	}
	return tx, nil
}

// fakeHooks implements ChainHooks with overridable behavior.  The zero value
// accepts every index, grants one unit of trust per block, and passes every
// checkpoint.
type fakeHooks struct {
	checkIndex      func(node *BlockIndex) bool
	checkCheckpoint func(height int32, checksum uint32) bool

	checkIndexCalls   int
	setBestChainCalls []*BlockIndex
	setBestChainErr   error
}

func (h *fakeHooks) CheckIndex(node *BlockIndex) bool {
	h.checkIndexCalls++
	if h.checkIndex != nil {
		return h.checkIndex(node)
	}
	return true
}

func (h *fakeHooks) BlockTrust(node *BlockIndex) *big.Int {
	return big.NewInt(1)
}

func (h *fakeHooks) StakeModifierChecksum(node *BlockIndex) uint32 {
	return uint32(node.Height)
}

func (h *fakeHooks) CheckStakeModifierCheckpoint(height int32, checksum uint32) bool {
	if h.checkCheckpoint != nil {
		return h.checkCheckpoint(height, checksum)
	}
	return true
}

func (h *fakeHooks) SetBestChain(db *ChainDB, node *BlockIndex) error {
	h.setBestChainCalls = append(h.setBestChainCalls, node)
	return h.setBestChainErr
}

// testChain is a linear fake chain rooted at a genesis block.
type testChain struct {
	hashes []chainhash.Hash
	source *fakeBlockSource
	txs    []*fakeTx
}

// blockPosition returns the disk position used for block payload i.
func blockPosition(i int) (uint32, uint32) {
	return 1, uint32(1000 * (i + 1))
}

// buildTestChain writes a linear chain of length n to the store: block index
// entries linked through both hashPrev and hashNext, one indexed transaction
// per block, the best-chain pointer, and the sync checkpoint.  Block i has
// height i, with block 0 as genesis.
func buildTestChain(t *testing.T, db *ChainDB, n int) *testChain {
	t.Helper()

	chain := &testChain{source: newFakeBlockSource()}
	for i := 0; i < n; i++ {
		chain.hashes = append(chain.hashes, hashFromByte(byte(i+1)))
	}

	for i := 0; i < n; i++ {
		file, pos := blockPosition(i)
		entry := &BlockIndexEntry{
			Version:      ClientVersion,
			File:         file,
			BlockPos:     pos,
			Height:       int32(i),
			BlockVersion: 7,
			Time:         1467230000 + uint32(i)*64,
			Bits:         0x1e0fffff,
		}
		if i > 0 {
			entry.HashPrev = chain.hashes[i-1]
		}
		if i < n-1 {
			entry.HashNext = chain.hashes[i+1]
		}
		if err := db.WriteBlockIndex(&chain.hashes[i], entry); err != nil {
			t.Fatalf("failed to write block index %d: %v", i, err)
		}

		tx := &fakeTx{hash: hashFromByte(byte(0x80 + i)), numOuts: 1}
		txPos := NewDiskTxPos(file, pos, 81)
		chain.txs = append(chain.txs, tx)
		chain.source.txs[txPos] = tx
		chain.source.blocks[blockFilePos{file, pos}] = &fakeBlock{
			hash: chain.hashes[i],
			txs:  []Transaction{tx},
		}
		if err := db.AddTxIndex(tx, txPos, int32(i)); err != nil {
			t.Fatalf("failed to index tx %d: %v", i, err)
		}
	}

	if err := db.WriteBestChain(&chain.hashes[n-1]); err != nil {
		t.Fatalf("failed to write best chain: %v", err)
	}
	if err := db.WriteSyncCheckpoint(&chain.hashes[n-1]); err != nil {
		t.Fatalf("failed to write sync checkpoint: %v", err)
	}
	return chain
}

// testConfig assembles a loader config over the fake chain.
func testConfig(db *ChainDB, chain *testChain, hooks *fakeHooks) *Config {
	cfg := &Config{
		DB:         db,
		State:      NewChainState(),
		Hooks:      hooks,
		CheckLevel: DefaultCheckLevel,
		CheckDepth: DefaultCheckDepth,
	}
	if chain != nil {
		cfg.Blocks = chain.source
		cfg.GenesisHash = chain.hashes[0]
	} else {
		cfg.Blocks = newFakeBlockSource()
		cfg.GenesisHash = hashFromByte(0x01)
	}
	return cfg
}
