// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"errors"
	"testing"
)

// loadTestChain builds a stored chain of length n and loads it with the
// given verifier knobs.
func loadTestChain(t *testing.T, n int, checkLevel int,
	checkDepth int32) (*Config, *testChain, *fakeHooks) {

	t.Helper()

	db, _ := openTestDB(t)
	chain := buildTestChain(t, db, n)
	hooks := &fakeHooks{}
	cfg := testConfig(db, chain, hooks)
	cfg.CheckLevel = checkLevel
	cfg.CheckDepth = checkDepth
	return cfg, chain, hooks
}

// mislocateTx rewrites the stored index entry of the given transaction so
// its recorded position no longer matches any stored payload.
func mislocateTx(t *testing.T, cfg *Config, tx Transaction) {
	t.Helper()

	idx, err := cfg.DB.ReadTxIndex(tx.Hash())
	if err != nil || idx == nil {
		t.Fatalf("ReadTxIndex: (%v, %v)", idx, err)
	}
	idx.Pos = NewDiskTxPos(1, 123, 81)
	if err := cfg.DB.UpdateTxIndex(tx.Hash(), idx); err != nil {
		t.Fatalf("UpdateTxIndex: %v", err)
	}
}

// TestVerifyCleanChain ensures a healthy chain passes the strictest scan
// without a rollback.
func TestVerifyCleanChain(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 6, 0)

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 0 {
		t.Fatalf("clean chain rolled back to %v",
			hooks.setBestChainCalls[0])
	}
	if cfg.State.Best == nil || cfg.State.Best.Hash != chain.hashes[9] {
		t.Fatalf("best block moved to %v", cfg.State.Best)
	}
}

// TestVerifyMislocatedTx ensures a transaction index pointing at a stale
// position rolls the best chain back to the parent of its block.
func TestVerifyMislocatedTx(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 2, 10)
	mislocateTx(t, cfg, chain.txs[7])

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 1 {
		t.Fatalf("SetBestChain calls: got %d, want 1",
			len(hooks.setBestChainCalls))
	}
	if fork := hooks.setBestChainCalls[0]; fork.Height != 6 {
		t.Fatalf("rolled back to height %d, want 6", fork.Height)
	}
}

// TestVerifyBadBlock ensures a block failing validation rolls the best
// chain back, and that the deepest bad block decides the fork point.
func TestVerifyBadBlock(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 1, 0)
	for _, i := range []int{5, 8} {
		file, pos := blockPosition(i)
		chain.source.blocks[blockFilePos{file, pos}].checkErr =
			errors.New("bad merkle root")
	}

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 1 {
		t.Fatalf("SetBestChain calls: got %d, want 1",
			len(hooks.setBestChainCalls))
	}
	if fork := hooks.setBestChainCalls[0]; fork.Height != 4 {
		t.Fatalf("rolled back to height %d, want 4", fork.Height)
	}
}

// TestVerifyDepthLimit ensures corruption below the scanned tail goes
// unnoticed.
func TestVerifyDepthLimit(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 2, 3)
	mislocateTx(t, cfg, chain.txs[2])

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 0 {
		t.Fatalf("shallow scan rolled back to %v",
			hooks.setBestChainCalls[0])
	}
}

// TestVerifyBadSpend ensures a spent marker pointing outside the scanned
// tail rolls the best chain back.
func TestVerifyBadSpend(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 4, 0)

	idx, err := cfg.DB.ReadTxIndex(chain.txs[5].Hash())
	if err != nil || idx == nil {
		t.Fatalf("ReadTxIndex: (%v, %v)", idx, err)
	}
	idx.Spent[0] = NewDiskTxPos(9, 9999, 50)
	if err := cfg.DB.UpdateTxIndex(chain.txs[5].Hash(), idx); err != nil {
		t.Fatalf("UpdateTxIndex: %v", err)
	}

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 1 {
		t.Fatalf("SetBestChain calls: got %d, want 1",
			len(hooks.setBestChainCalls))
	}
	if fork := hooks.setBestChainCalls[0]; fork.Height != 4 {
		t.Fatalf("rolled back to height %d, want 4", fork.Height)
	}
}

// TestVerifyUnspentPrevout ensures a transaction consuming an output that
// is not marked spent in the prevout's index rolls the best chain back.
func TestVerifyUnspentPrevout(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 5, 0)
	chain.txs[8].inputs = []OutPoint{
		{Hash: *chain.txs[2].Hash(), Index: 0},
	}

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 1 {
		t.Fatalf("SetBestChain calls: got %d, want 1",
			len(hooks.setBestChainCalls))
	}
	if fork := hooks.setBestChainCalls[0]; fork.Height != 7 {
		t.Fatalf("rolled back to height %d, want 7", fork.Height)
	}
}

// TestVerifySpendMismatch ensures a recorded spend whose spending
// transaction does not actually consume the output rolls the best chain
// back.
func TestVerifySpendMismatch(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 6, 0)

	// Point the spend at a transaction inside the tail that spends
	// nothing.
	file, pos := blockPosition(6)
	idx, err := cfg.DB.ReadTxIndex(chain.txs[3].Hash())
	if err != nil || idx == nil {
		t.Fatalf("ReadTxIndex: (%v, %v)", idx, err)
	}
	idx.Spent[0] = NewDiskTxPos(file, pos, 81)
	if err := cfg.DB.UpdateTxIndex(chain.txs[3].Hash(), idx); err != nil {
		t.Fatalf("UpdateTxIndex: %v", err)
	}

	if err := LoadBlockIndex(cfg); err != nil {
		t.Fatalf("LoadBlockIndex: %v", err)
	}
	if len(hooks.setBestChainCalls) != 1 {
		t.Fatalf("SetBestChain calls: got %d, want 1",
			len(hooks.setBestChainCalls))
	}
	if fork := hooks.setBestChainCalls[0]; fork.Height != 2 {
		t.Fatalf("rolled back to height %d, want 2", fork.Height)
	}
}

// TestVerifyUnreadableBlock ensures a block payload that cannot be read
// aborts the scan with a corruption error.
func TestVerifyUnreadableBlock(t *testing.T) {
	cfg, chain, _ := loadTestChain(t, 5, 0, 0)
	file, pos := blockPosition(4)
	delete(chain.source.blocks, blockFilePos{file, pos})

	err := LoadBlockIndex(cfg)
	if !IsErrorCode(err, ErrCorruption) {
		t.Fatalf("load: got %v, want ErrCorruption", err)
	}
}

// TestVerifyRollbackHookFailure ensures a rollback that fails inside the
// hook aborts the batch and surfaces the error.
func TestVerifyRollbackHookFailure(t *testing.T) {
	cfg, chain, hooks := loadTestChain(t, 10, 2, 0)
	mislocateTx(t, cfg, chain.txs[7])
	hookErr := errors.New("disk full")
	hooks.setBestChainErr = hookErr

	if err := LoadBlockIndex(cfg); !errors.Is(err, hookErr) {
		t.Fatalf("load: got %v, want %v", err, hookErr)
	}
	if cfg.DB.BatchActive() {
		t.Fatal("failed rollback left a batch open")
	}
}
