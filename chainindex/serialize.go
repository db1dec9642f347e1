// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// byteOrder is the preferred byte order used for serializing numeric fields
// for storage.
var byteOrder = binary.LittleEndian

const (
	// diskTxPosSerializeSize is the size of a serialized DiskTxPos.
	diskTxPosSerializeSize = 4 + 4 + 4

	// outPointSerializeSize is the size of a serialized OutPoint.
	outPointSerializeSize = chainhash.HashSize + 4

	// blockIndexEntrySerializeSize is the size of a serialized
	// BlockIndexEntry.  The record layout is fixed; proof-of-work entries
	// carry zeroed stake fields.
	blockIndexEntrySerializeSize = 4 + chainhash.HashSize + 4 + 4 + 4 +
		8 + 8 + 4 + 8 + outPointSerializeSize + 4 + chainhash.HashSize +
		4 + chainhash.HashSize + chainhash.HashSize + 4 + 4 + 4
)

// -----------------------------------------------------------------------------
// Variable-length quantities are stored using the compact-size convention:
// values below 0xfd occupy a single byte, larger values carry a 0xfd/0xfe/0xff
// marker followed by a 2/4/8 byte little-endian integer.  Encodings must be
// minimal; a value stored wider than necessary fails deserialization.
// -----------------------------------------------------------------------------

// compactSizeSerializeSize returns the number of bytes needed to serialize n
// as a compact-size integer.
func compactSizeSerializeSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= math.MaxUint16:
		return 3
	case n <= math.MaxUint32:
		return 5
	}
	return 9
}

// putCompactSize serializes n as a compact-size integer into the target byte
// slice and returns the number of bytes written.  The target must be at least
// compactSizeSerializeSize(n) bytes.
func putCompactSize(target []byte, n uint64) int {
	switch {
	case n < 0xfd:
		target[0] = uint8(n)
		return 1
	case n <= math.MaxUint16:
		target[0] = 0xfd
		byteOrder.PutUint16(target[1:], uint16(n))
		return 3
	case n <= math.MaxUint32:
		target[0] = 0xfe
		byteOrder.PutUint32(target[1:], uint32(n))
		return 5
	}
	target[0] = 0xff
	byteOrder.PutUint64(target[1:], n)
	return 9
}

// deserializeCompactSize decodes a compact-size integer from the passed byte
// slice and returns the value along with the number of bytes read.
func deserializeCompactSize(serialized []byte) (uint64, int, error) {
	if len(serialized) == 0 {
		return 0, 0, errDeserialize("unexpected end of data while " +
			"reading compact size")
	}

	discriminant := serialized[0]
	switch discriminant {
	case 0xfd:
		if len(serialized) < 3 {
			return 0, 0, errDeserialize("unexpected end of data " +
				"while reading compact size")
		}
		n := uint64(byteOrder.Uint16(serialized[1:]))
		if n < 0xfd {
			return 0, 0, deserializeError("non-minimal compact "+
				"size %d", n)
		}
		return n, 3, nil

	case 0xfe:
		if len(serialized) < 5 {
			return 0, 0, errDeserialize("unexpected end of data " +
				"while reading compact size")
		}
		n := uint64(byteOrder.Uint32(serialized[1:]))
		if n <= math.MaxUint16 {
			return 0, 0, deserializeError("non-minimal compact "+
				"size %d", n)
		}
		return n, 5, nil

	case 0xff:
		if len(serialized) < 9 {
			return 0, 0, errDeserialize("unexpected end of data " +
				"while reading compact size")
		}
		n := byteOrder.Uint64(serialized[1:])
		if n <= math.MaxUint32 {
			return 0, 0, deserializeError("non-minimal compact "+
				"size %d", n)
		}
		return n, 9, nil
	}

	return uint64(discriminant), 1, nil
}

// -----------------------------------------------------------------------------
// DiskTxPos locates a transaction inside the external block files as a
// (file, block offset, tx offset) triple.  The null position, marking an
// unspent output, stores all-ones in the file field.
// -----------------------------------------------------------------------------

// DiskTxPos is the disk location of a stored transaction.
type DiskTxPos struct {
	File     uint32
	BlockPos uint32
	TxPos    uint32
}

// NewDiskTxPos returns a disk position for the given file and offsets.
func NewDiskTxPos(file, blockPos, txPos uint32) DiskTxPos {
	return DiskTxPos{File: file, BlockPos: blockPos, TxPos: txPos}
}

// NullDiskTxPos returns the null position used to mark unspent outputs.
func NullDiskTxPos() DiskTxPos {
	return DiskTxPos{File: math.MaxUint32}
}

// IsNull returns whether the position is the null marker.
func (p *DiskTxPos) IsNull() bool {
	return p.File == math.MaxUint32
}

// String returns the position in human-readable form.
func (p *DiskTxPos) String() string {
	if p.IsNull() {
		return "null"
	}
	return fmt.Sprintf("(nFile=%d, nBlockPos=%d, nTxPos=%d)", p.File,
		p.BlockPos, p.TxPos)
}

// SameBlockAs returns whether both positions refer to the same block payload.
func (p *DiskTxPos) SameBlockAs(other *DiskTxPos) bool {
	return p.File == other.File && p.BlockPos == other.BlockPos
}

func putDiskTxPos(target []byte, pos *DiskTxPos) int {
	byteOrder.PutUint32(target[0:], pos.File)
	byteOrder.PutUint32(target[4:], pos.BlockPos)
	byteOrder.PutUint32(target[8:], pos.TxPos)
	return diskTxPosSerializeSize
}

func deserializeDiskTxPos(serialized []byte, pos *DiskTxPos) (int, error) {
	if len(serialized) < diskTxPosSerializeSize {
		return 0, errDeserialize("unexpected end of data while " +
			"reading tx position")
	}
	pos.File = byteOrder.Uint32(serialized[0:])
	pos.BlockPos = byteOrder.Uint32(serialized[4:])
	pos.TxPos = byteOrder.Uint32(serialized[8:])
	return diskTxPosSerializeSize, nil
}

// -----------------------------------------------------------------------------
// OutPoint references one output of a transaction by hash and index.
// -----------------------------------------------------------------------------

// OutPoint identifies a transaction output.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// String returns the outpoint in the canonical hash:index form.
func (o *OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

func putOutPoint(target []byte, op *OutPoint) int {
	copy(target, op.Hash[:])
	byteOrder.PutUint32(target[chainhash.HashSize:], op.Index)
	return outPointSerializeSize
}

func deserializeOutPoint(serialized []byte, op *OutPoint) (int, error) {
	if len(serialized) < outPointSerializeSize {
		return 0, errDeserialize("unexpected end of data while " +
			"reading outpoint")
	}
	copy(op.Hash[:], serialized[:chainhash.HashSize])
	op.Index = byteOrder.Uint32(serialized[chainhash.HashSize:])
	return outPointSerializeSize, nil
}

// -----------------------------------------------------------------------------
// TxIndex is the stored record for one indexed transaction: its disk position
// plus one spent marker per output.  A null marker means the output is
// unspent; otherwise the marker holds the position of the spending
// transaction.  The record leads with the client version that wrote it.
// -----------------------------------------------------------------------------

// TxIndex is the stored transaction index record.
type TxIndex struct {
	Version int32
	Pos     DiskTxPos
	Spent   []DiskTxPos
}

// NewTxIndex returns a transaction index for a transaction stored at pos with
// numOutputs unspent outputs.
func NewTxIndex(pos DiskTxPos, numOutputs int) *TxIndex {
	spent := make([]DiskTxPos, numOutputs)
	for i := range spent {
		spent[i] = NullDiskTxPos()
	}
	return &TxIndex{Version: ClientVersion, Pos: pos, Spent: spent}
}

func txIndexSerializeSize(idx *TxIndex) int {
	return 4 + diskTxPosSerializeSize +
		compactSizeSerializeSize(uint64(len(idx.Spent))) +
		len(idx.Spent)*diskTxPosSerializeSize
}

// serializeTxIndex serializes the passed transaction index into a single byte
// slice.
func serializeTxIndex(idx *TxIndex) []byte {
	serialized := make([]byte, txIndexSerializeSize(idx))
	offset := 0
	byteOrder.PutUint32(serialized[offset:], uint32(idx.Version))
	offset += 4
	offset += putDiskTxPos(serialized[offset:], &idx.Pos)
	offset += putCompactSize(serialized[offset:], uint64(len(idx.Spent)))
	for i := range idx.Spent {
		offset += putDiskTxPos(serialized[offset:], &idx.Spent[i])
	}
	return serialized
}

// deserializeTxIndex decodes a transaction index record.  Trailing bytes are
// an error.
func deserializeTxIndex(serialized []byte) (*TxIndex, error) {
	var idx TxIndex
	if len(serialized) < 4 {
		return nil, errDeserialize("unexpected end of data while " +
			"reading tx index version")
	}
	idx.Version = int32(byteOrder.Uint32(serialized))
	offset := 4

	n, err := deserializeDiskTxPos(serialized[offset:], &idx.Pos)
	if err != nil {
		return nil, err
	}
	offset += n

	numSpent, n, err := deserializeCompactSize(serialized[offset:])
	if err != nil {
		return nil, err
	}
	offset += n
	if numSpent > uint64(len(serialized[offset:]))/diskTxPosSerializeSize {
		return nil, deserializeError("spent vector claims %d entries "+
			"beyond remaining data", numSpent)
	}

	idx.Spent = make([]DiskTxPos, numSpent)
	for i := uint64(0); i < numSpent; i++ {
		n, err := deserializeDiskTxPos(serialized[offset:], &idx.Spent[i])
		if err != nil {
			return nil, err
		}
		offset += n
	}

	if offset != len(serialized) {
		return nil, deserializeError("%d trailing bytes after tx index",
			len(serialized)-offset)
	}
	return &idx, nil
}

// -----------------------------------------------------------------------------
// BlockIndexEntry is the stored record for one block: its location inside the
// block files, the chain bookkeeping fields, the stake fields, and the full
// block header.  The layout is fixed; the record leads with the client
// version that wrote it.
// -----------------------------------------------------------------------------

// BlockIndexEntry is the stored block index record.
type BlockIndexEntry struct {
	Version       int32
	HashNext      chainhash.Hash
	File          uint32
	BlockPos      uint32
	Height        int32
	Mint          int64
	MoneySupply   int64
	Flags         uint32
	StakeModifier uint64
	PrevoutStake  OutPoint
	StakeTime     uint32
	HashProof     chainhash.Hash

	// Block header fields.
	BlockVersion int32
	HashPrev     chainhash.Hash
	MerkleRoot   chainhash.Hash
	Time         uint32
	Bits         uint32
	Nonce        uint32
}

// serializeBlockIndexEntry serializes the passed block index entry into a
// single byte slice.
func serializeBlockIndexEntry(entry *BlockIndexEntry) []byte {
	serialized := make([]byte, blockIndexEntrySerializeSize)
	offset := 0
	byteOrder.PutUint32(serialized[offset:], uint32(entry.Version))
	offset += 4
	offset += copy(serialized[offset:], entry.HashNext[:])
	byteOrder.PutUint32(serialized[offset:], entry.File)
	offset += 4
	byteOrder.PutUint32(serialized[offset:], entry.BlockPos)
	offset += 4
	byteOrder.PutUint32(serialized[offset:], uint32(entry.Height))
	offset += 4
	byteOrder.PutUint64(serialized[offset:], uint64(entry.Mint))
	offset += 8
	byteOrder.PutUint64(serialized[offset:], uint64(entry.MoneySupply))
	offset += 8
	byteOrder.PutUint32(serialized[offset:], entry.Flags)
	offset += 4
	byteOrder.PutUint64(serialized[offset:], entry.StakeModifier)
	offset += 8
	offset += putOutPoint(serialized[offset:], &entry.PrevoutStake)
	byteOrder.PutUint32(serialized[offset:], entry.StakeTime)
	offset += 4
	offset += copy(serialized[offset:], entry.HashProof[:])
	byteOrder.PutUint32(serialized[offset:], uint32(entry.BlockVersion))
	offset += 4
	offset += copy(serialized[offset:], entry.HashPrev[:])
	offset += copy(serialized[offset:], entry.MerkleRoot[:])
	byteOrder.PutUint32(serialized[offset:], entry.Time)
	offset += 4
	byteOrder.PutUint32(serialized[offset:], entry.Bits)
	offset += 4
	byteOrder.PutUint32(serialized[offset:], entry.Nonce)
	return serialized
}

// deserializeBlockIndexEntry decodes a block index record.  Trailing bytes
// are an error.
func deserializeBlockIndexEntry(serialized []byte) (*BlockIndexEntry, error) {
	if len(serialized) != blockIndexEntrySerializeSize {
		return nil, deserializeError("block index record is %d bytes, "+
			"want %d", len(serialized), blockIndexEntrySerializeSize)
	}

	var entry BlockIndexEntry
	offset := 0
	entry.Version = int32(byteOrder.Uint32(serialized[offset:]))
	offset += 4
	offset += copy(entry.HashNext[:], serialized[offset:])
	entry.File = byteOrder.Uint32(serialized[offset:])
	offset += 4
	entry.BlockPos = byteOrder.Uint32(serialized[offset:])
	offset += 4
	entry.Height = int32(byteOrder.Uint32(serialized[offset:]))
	offset += 4
	entry.Mint = int64(byteOrder.Uint64(serialized[offset:]))
	offset += 8
	entry.MoneySupply = int64(byteOrder.Uint64(serialized[offset:]))
	offset += 8
	entry.Flags = byteOrder.Uint32(serialized[offset:])
	offset += 4
	entry.StakeModifier = byteOrder.Uint64(serialized[offset:])
	offset += 8
	n, err := deserializeOutPoint(serialized[offset:], &entry.PrevoutStake)
	if err != nil {
		return nil, err
	}
	offset += n
	entry.StakeTime = byteOrder.Uint32(serialized[offset:])
	offset += 4
	offset += copy(entry.HashProof[:], serialized[offset:])
	entry.BlockVersion = int32(byteOrder.Uint32(serialized[offset:]))
	offset += 4
	offset += copy(entry.HashPrev[:], serialized[offset:])
	offset += copy(entry.MerkleRoot[:], serialized[offset:])
	entry.Time = byteOrder.Uint32(serialized[offset:])
	offset += 4
	entry.Bits = byteOrder.Uint32(serialized[offset:])
	offset += 4
	entry.Nonce = byteOrder.Uint32(serialized[offset:])

	return &entry, nil
}

// -----------------------------------------------------------------------------
// Singleton values.
// -----------------------------------------------------------------------------

// serializeHash serializes a hash as its raw 32 bytes.
func serializeHash(hash *chainhash.Hash) []byte {
	serialized := make([]byte, chainhash.HashSize)
	copy(serialized, hash[:])
	return serialized
}

// deserializeHash decodes a raw 32-byte hash.
func deserializeHash(serialized []byte) (*chainhash.Hash, error) {
	if len(serialized) != chainhash.HashSize {
		return nil, deserializeError("hash is %d bytes, want %d",
			len(serialized), chainhash.HashSize)
	}
	var hash chainhash.Hash
	copy(hash[:], serialized)
	return &hash, nil
}

// serializeBigNum serializes a non-negative big integer as a compact-size
// count followed by the little-endian magnitude.  A magnitude whose top byte
// has the high bit set gains a zero pad byte, keeping the sign bit clear.
func serializeBigNum(n *big.Int) []byte {
	magnitude := n.Bytes() // big-endian
	padded := len(magnitude) > 0 && magnitude[0]&0x80 != 0
	dataLen := len(magnitude)
	if padded {
		dataLen++
	}

	serialized := make([]byte, compactSizeSerializeSize(uint64(dataLen))+
		dataLen)
	offset := putCompactSize(serialized, uint64(dataLen))
	for i, b := range magnitude {
		serialized[offset+len(magnitude)-1-i] = b
	}
	return serialized
}

// deserializeBigNum decodes a compact-size-prefixed little-endian magnitude.
func deserializeBigNum(serialized []byte) (*big.Int, error) {
	dataLen, offset, err := deserializeCompactSize(serialized)
	if err != nil {
		return nil, err
	}
	if uint64(len(serialized[offset:])) != dataLen {
		return nil, deserializeError("bignum claims %d bytes, %d "+
			"remain", dataLen, len(serialized[offset:]))
	}

	magnitude := make([]byte, dataLen)
	for i, b := range serialized[offset:] {
		magnitude[len(magnitude)-1-i] = b
	}
	return new(big.Int).SetBytes(magnitude), nil
}

// serializeString serializes a string as a compact-size count followed by the
// raw bytes.
func serializeString(s string) []byte {
	serialized := make([]byte, compactSizeSerializeSize(uint64(len(s)))+
		len(s))
	offset := putCompactSize(serialized, uint64(len(s)))
	copy(serialized[offset:], s)
	return serialized
}

// deserializeString decodes a compact-size-prefixed string.
func deserializeString(serialized []byte) (string, error) {
	strLen, offset, err := deserializeCompactSize(serialized)
	if err != nil {
		return "", err
	}
	if uint64(len(serialized[offset:])) != strLen {
		return "", deserializeError("string claims %d bytes, %d "+
			"remain", strLen, len(serialized[offset:]))
	}
	return string(serialized[offset:]), nil
}

// serializeInt32 serializes a 32-bit integer as 4 little-endian bytes.
func serializeInt32(n int32) []byte {
	serialized := make([]byte, 4)
	byteOrder.PutUint32(serialized, uint32(n))
	return serialized
}

// deserializeInt32 decodes a 4-byte little-endian integer.
func deserializeInt32(serialized []byte) (int32, error) {
	if len(serialized) != 4 {
		return 0, deserializeError("int32 is %d bytes, want 4",
			len(serialized))
	}
	return int32(byteOrder.Uint32(serialized)), nil
}

// -----------------------------------------------------------------------------
// Keys.  Composite keys concatenate a compact-size-prefixed namespace tag
// with the raw serialized identifier.  Singleton keys are the bare tag.
// -----------------------------------------------------------------------------

// Namespace tags and singleton key names.
const (
	txKeyTag         = "tx"
	blockIndexKeyTag = "blockindex"

	bestChainKeyName        = "hashBestChain"
	bestInvalidTrustKeyName = "bnBestInvalidTrust"
	syncCheckpointKeyName   = "hashSyncCheckpoint"
	checkpointPubKeyKeyName = "strCheckpointPubKey"
	versionKeyName          = "version"
)

// taggedKey builds a composite key from a namespace tag and a hash.
func taggedKey(tag string, hash *chainhash.Hash) []byte {
	key := make([]byte, compactSizeSerializeSize(uint64(len(tag)))+
		len(tag)+chainhash.HashSize)
	offset := putCompactSize(key, uint64(len(tag)))
	offset += copy(key[offset:], tag)
	copy(key[offset:], hash[:])
	return key
}

// singletonKey builds the key for a singleton entry.
func singletonKey(name string) []byte {
	return serializeString(name)
}

// keyTagPrefix returns the serialized tag prefix shared by every key in a
// namespace.  Iteration from this prefix visits the namespace in hash order.
func keyTagPrefix(tag string) []byte {
	return serializeString(tag)
}

// decodeTaggedKey splits a composite key into its namespace tag and the hash
// identifier.  Keys from other namespaces return their tag with a nil hash.
func decodeTaggedKey(key []byte) (string, *chainhash.Hash, error) {
	tagLen, offset, err := deserializeCompactSize(key)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(key[offset:])) < tagLen {
		return "", nil, deserializeError("key tag claims %d bytes, "+
			"%d remain", tagLen, len(key[offset:]))
	}
	tag := string(key[offset : offset+int(tagLen)])
	rest := key[offset+int(tagLen):]
	if len(rest) == 0 {
		return tag, nil, nil
	}

	hash, err := deserializeHash(rest)
	if err != nil {
		return tag, nil, err
	}
	return tag, hash, nil
}
