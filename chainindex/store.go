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

// ReadTxIndex returns the transaction index entry for the given transaction
// hash, or nil when the transaction is not indexed.
func (d *ChainDB) ReadTxIndex(txHash *chainhash.Hash) (*TxIndex, error) {
	serialized, found, err := d.read(taggedKey(txKeyTag, txHash))
	if err != nil || !found {
		return nil, err
	}

	idx, derr := deserializeTxIndex(serialized)
	if derr != nil {
		return nil, storeError(ErrCorruption, fmt.Sprintf("corrupt tx "+
			"index for %v", txHash), derr)
	}
	return idx, nil
}

// UpdateTxIndex stores the transaction index entry for the given transaction
// hash.
func (d *ChainDB) UpdateTxIndex(txHash *chainhash.Hash, idx *TxIndex) error {
	return d.write(taggedKey(txKeyTag, txHash), serializeTxIndex(idx))
}

// AddTxIndex indexes a newly accepted transaction at the given position with
// every output unspent.  The height parameter is reserved and currently
// unused.
func (d *ChainDB) AddTxIndex(tx Transaction, pos DiskTxPos, height int32) error {
	_ = height

	return d.UpdateTxIndex(tx.Hash(), NewTxIndex(pos, tx.NumOutputs()))
}

// EraseTxIndex removes the transaction index entry for the transaction.
func (d *ChainDB) EraseTxIndex(tx Transaction) error {
	return d.erase(taggedKey(txKeyTag, tx.Hash()))
}

// ContainsTx returns whether the transaction is indexed.
func (d *ChainDB) ContainsTx(txHash *chainhash.Hash) (bool, error) {
	return d.exists(taggedKey(txKeyTag, txHash))
}

// ReadDiskTx reads an indexed transaction and its index entry back from the
// block files.  A nil transaction with no error means the transaction is not
// indexed.
func (d *ChainDB) ReadDiskTx(source BlockSource, txHash *chainhash.Hash) (Transaction, *TxIndex, error) {
	idx, err := d.ReadTxIndex(txHash)
	if err != nil || idx == nil {
		return nil, nil, err
	}

	tx, err := source.ReadTransaction(idx.Pos)
	if err != nil {
		return nil, nil, err
	}
	return tx, idx, nil
}

// ReadDiskTxOutPoint reads the transaction referenced by an outpoint.
func (d *ChainDB) ReadDiskTxOutPoint(source BlockSource, outpoint *OutPoint) (Transaction, *TxIndex, error) {
	return d.ReadDiskTx(source, &outpoint.Hash)
}

// ReadBlockIndex returns the stored block index record for the given block
// hash, or nil when absent.
func (d *ChainDB) ReadBlockIndex(blockHash *chainhash.Hash) (*BlockIndexEntry, error) {
	serialized, found, err := d.read(taggedKey(blockIndexKeyTag, blockHash))
	if err != nil || !found {
		return nil, err
	}

	entry, derr := deserializeBlockIndexEntry(serialized)
	if derr != nil {
		return nil, storeError(ErrCorruption, fmt.Sprintf("corrupt "+
			"block index for %v", blockHash), derr)
	}
	return entry, nil
}

// WriteBlockIndex stores the block index record under the given block hash.
// The record does not carry its own hash, so the caller supplies it.
func (d *ChainDB) WriteBlockIndex(blockHash *chainhash.Hash, entry *BlockIndexEntry) error {
	key := taggedKey(blockIndexKeyTag, blockHash)
	if err := d.write(key, serializeBlockIndexEntry(entry)); err != nil {
		return err
	}
	// A write pending in a batch is not stored yet and may be aborted.
	if d.activeBatch == nil {
		d.shared.recentIndex.Add(*blockHash)
	}
	return nil
}

// ContainsBlockIndex returns whether a block index record is stored for the
// hash.  Recently confirmed hashes are answered from a bounded cache shared
// by all handles on the store.
func (d *ChainDB) ContainsBlockIndex(blockHash *chainhash.Hash) (bool, error) {
	if d.shared.recentIndex.Contains(*blockHash) {
		return true, nil
	}

	found, err := d.exists(taggedKey(blockIndexKeyTag, blockHash))
	if err != nil {
		return false, err
	}
	if found {
		d.shared.recentIndex.Add(*blockHash)
	}
	return found, nil
}

// ForEachBlockIndex invokes fn for every stored block index record.  The
// iteration order follows the key encoding and is not meaningful.  A non-nil
// error from fn stops the iteration and is returned.
func (d *ChainDB) ForEachBlockIndex(fn func(blockHash *chainhash.Hash, entry *BlockIndexEntry) error) error {
	return d.forEachTagged(blockIndexKeyTag, func(hash *chainhash.Hash,
		serialized []byte) error {

		entry, derr := deserializeBlockIndexEntry(serialized)
		if derr != nil {
			return storeError(ErrCorruption, fmt.Sprintf("corrupt "+
				"block index for %v", hash), derr)
		}
		return fn(hash, entry)
	})
}

// ForEachTxIndex invokes fn for every stored transaction index record.  The
// iteration order follows the key encoding and is not meaningful.  A non-nil
// error from fn stops the iteration and is returned.
func (d *ChainDB) ForEachTxIndex(fn func(txHash *chainhash.Hash, idx *TxIndex) error) error {
	return d.forEachTagged(txKeyTag, func(hash *chainhash.Hash,
		serialized []byte) error {

		idx, derr := deserializeTxIndex(serialized)
		if derr != nil {
			return storeError(ErrCorruption, fmt.Sprintf("corrupt tx "+
				"index for %v", hash), derr)
		}
		return fn(hash, idx)
	})
}

// forEachTagged walks every record stored under the given key tag.
func (d *ChainDB) forEachTagged(keyTag string, fn func(hash *chainhash.Hash,
	serialized []byte) error) error {

	if d.closed {
		return storeError(ErrDbClosed, "store is closed", nil)
	}

	iter := d.shared.NewIterator(keyTagPrefix(keyTag))
	defer iter.Release()

	for iter.Next() {
		tag, hash, err := decodeTaggedKey(iter.Key())
		if err != nil {
			return storeError(ErrCorruption, "undecodable store key",
				err)
		}
		if tag != keyTag {
			break
		}
		if hash == nil {
			return storeError(ErrCorruption, fmt.Sprintf("%s key "+
				"without a hash", keyTag), nil)
		}
		if err := fn(hash, iter.Value()); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return storeError(ErrCorruption, fmt.Sprintf("%s scan failed",
			keyTag), err)
	}
	return nil
}

// ReadBestChain returns the best-chain tip hash, or nil when unset.
func (d *ChainDB) ReadBestChain() (*chainhash.Hash, error) {
	serialized, found, err := d.read(singletonKey(bestChainKeyName))
	if err != nil || !found {
		return nil, err
	}

	hash, derr := deserializeHash(serialized)
	if derr != nil {
		return nil, storeError(ErrCorruption, "corrupt best chain entry",
			derr)
	}
	return hash, nil
}

// WriteBestChain stores the best-chain tip hash.
func (d *ChainDB) WriteBestChain(hash *chainhash.Hash) error {
	return d.write(singletonKey(bestChainKeyName), serializeHash(hash))
}

// ReadBestInvalidTrust returns the recorded best invalid chain trust, or nil
// when unset.
func (d *ChainDB) ReadBestInvalidTrust() (*big.Int, error) {
	serialized, found, err := d.read(singletonKey(bestInvalidTrustKeyName))
	if err != nil || !found {
		return nil, err
	}

	trust, derr := deserializeBigNum(serialized)
	if derr != nil {
		return nil, storeError(ErrCorruption, "corrupt invalid trust "+
			"entry", derr)
	}
	return trust, nil
}

// WriteBestInvalidTrust stores the best invalid chain trust.
func (d *ChainDB) WriteBestInvalidTrust(trust *big.Int) error {
	return d.write(singletonKey(bestInvalidTrustKeyName),
		serializeBigNum(trust))
}

// ReadSyncCheckpoint returns the sync checkpoint hash, or nil when unset.
func (d *ChainDB) ReadSyncCheckpoint() (*chainhash.Hash, error) {
	serialized, found, err := d.read(singletonKey(syncCheckpointKeyName))
	if err != nil || !found {
		return nil, err
	}

	hash, derr := deserializeHash(serialized)
	if derr != nil {
		return nil, storeError(ErrCorruption, "corrupt sync checkpoint "+
			"entry", derr)
	}
	return hash, nil
}

// WriteSyncCheckpoint stores the sync checkpoint hash.
func (d *ChainDB) WriteSyncCheckpoint(hash *chainhash.Hash) error {
	return d.write(singletonKey(syncCheckpointKeyName), serializeHash(hash))
}

// ReadCheckpointPubKey returns the checkpoint master public key and whether
// one is stored.
func (d *ChainDB) ReadCheckpointPubKey() (string, bool, error) {
	serialized, found, err := d.read(singletonKey(checkpointPubKeyKeyName))
	if err != nil || !found {
		return "", false, err
	}

	pubKey, derr := deserializeString(serialized)
	if derr != nil {
		return "", false, storeError(ErrCorruption, "corrupt checkpoint "+
			"pubkey entry", derr)
	}
	return pubKey, true, nil
}

// WriteCheckpointPubKey stores the checkpoint master public key.
func (d *ChainDB) WriteCheckpointPubKey(pubKey string) error {
	return d.write(singletonKey(checkpointPubKeyKeyName),
		serializeString(pubKey))
}

// ReadVersion returns the stored schema version and whether one is stored.
func (d *ChainDB) ReadVersion() (int32, bool, error) {
	serialized, found, err := d.read(singletonKey(versionKeyName))
	if err != nil || !found {
		return 0, false, err
	}

	version, derr := deserializeInt32(serialized)
	if derr != nil {
		return 0, false, storeError(ErrCorruption, "corrupt version "+
			"entry", derr)
	}
	return version, true, nil
}

// WriteVersion stores the schema version.
func (d *ChainDB) WriteVersion(version int32) error {
	return d.write(singletonKey(versionKeyName), serializeInt32(version))
}
