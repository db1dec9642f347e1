// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"bytes"
	"math/big"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
)

// hashFromByte returns a hash whose every byte is b.  Test helper.
func hashFromByte(b byte) chainhash.Hash {
	var hash chainhash.Hash
	for i := range hash {
		hash[i] = b
	}
	return hash
}

// TestCompactSize ensures compact-size integers serialize to the expected
// wire forms and round-trip.
func TestCompactSize(t *testing.T) {
	tests := []struct {
		value      uint64
		serialized []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{0xfc, []byte{0xfc}},
		{0xfd, []byte{0xfd, 0xfd, 0x00}},
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		{0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
			0x00, 0x00}},
	}

	for _, test := range tests {
		gotSize := compactSizeSerializeSize(test.value)
		if gotSize != len(test.serialized) {
			t.Errorf("compactSizeSerializeSize(%d): got %d, want %d",
				test.value, gotSize, len(test.serialized))
			continue
		}

		serialized := make([]byte, gotSize)
		putCompactSize(serialized, test.value)
		if !bytes.Equal(serialized, test.serialized) {
			t.Errorf("putCompactSize(%d): got %x, want %x",
				test.value, serialized, test.serialized)
			continue
		}

		value, bytesRead, err := deserializeCompactSize(serialized)
		if err != nil {
			t.Errorf("deserializeCompactSize(%x): unexpected error "+
				"%v", serialized, err)
			continue
		}
		if value != test.value || bytesRead != len(test.serialized) {
			t.Errorf("deserializeCompactSize(%x): got (%d, %d), "+
				"want (%d, %d)", serialized, value, bytesRead,
				test.value, len(test.serialized))
		}
	}
}

// TestCompactSizeErrors ensures short and non-minimal compact-size encodings
// fail to deserialize.
func TestCompactSizeErrors(t *testing.T) {
	tests := [][]byte{
		nil,
		{0xfd},
		{0xfd, 0x01},
		{0xfe, 0x01, 0x00},
		{0xff, 0x01, 0x00, 0x00, 0x00},
		{0xfd, 0x01, 0x00},             // fits in one byte
		{0xfe, 0xff, 0xff, 0x00, 0x00}, // fits in three bytes
		{0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00},
	}

	for _, serialized := range tests {
		_, _, err := deserializeCompactSize(serialized)
		if !isDeserializeErr(err) {
			t.Errorf("deserializeCompactSize(%x): got %v, want "+
				"deserialize error", serialized, err)
		}
	}
}

// TestTxIndexSerialization ensures tx index records round-trip and that
// NewTxIndex initializes every spent marker to null.
func TestTxIndexSerialization(t *testing.T) {
	spendPos := NewDiskTxPos(2, 4096, 512)
	tests := []struct {
		name  string
		entry *TxIndex
	}{
		{
			name: "no outputs",
			entry: &TxIndex{
				Version: ClientVersion,
				Pos:     NewDiskTxPos(1, 80, 161),
				Spent:   []DiskTxPos{},
			},
		},
		{
			name:  "two unspent outputs",
			entry: NewTxIndex(NewDiskTxPos(1, 80, 161), 2),
		},
		{
			name: "one spent one unspent",
			entry: &TxIndex{
				Version: ClientVersion,
				Pos:     NewDiskTxPos(1, 80, 161),
				Spent:   []DiskTxPos{spendPos, NullDiskTxPos()},
			},
		},
	}

	for _, test := range tests {
		serialized := serializeTxIndex(test.entry)
		got, err := deserializeTxIndex(serialized)
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(got, test.entry) {
			t.Errorf("%s: mismatch:\ngot %s\nwant %s", test.name,
				spew.Sdump(got), spew.Sdump(test.entry))
		}
	}

	for i, pos := range NewTxIndex(NewDiskTxPos(1, 80, 161), 3).Spent {
		if !pos.IsNull() {
			t.Errorf("NewTxIndex spent[%d] is not null", i)
		}
	}
}

// TestTxIndexSerializationErrors ensures corrupt tx index records are
// rejected.
func TestTxIndexSerializationErrors(t *testing.T) {
	valid := serializeTxIndex(NewTxIndex(NewDiskTxPos(1, 80, 161), 2))

	tests := []struct {
		name       string
		serialized []byte
	}{
		{"empty", nil},
		{"short version", valid[:3]},
		{"short position", valid[:10]},
		{"short spent vector", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"overclaimed count", func() []byte {
			bad := append([]byte{}, valid...)
			bad[16] = 0xfc
			return bad
		}()},
	}

	for _, test := range tests {
		if _, err := deserializeTxIndex(test.serialized); !isDeserializeErr(err) {
			t.Errorf("%s: got %v, want deserialize error",
				test.name, err)
		}
	}
}

// TestBlockIndexEntrySerialization ensures block index records round-trip
// and occupy the fixed record size.
func TestBlockIndexEntrySerialization(t *testing.T) {
	tests := []struct {
		name  string
		entry *BlockIndexEntry
	}{
		{
			name: "proof of stake block",
			entry: &BlockIndexEntry{
				Version:       ClientVersion,
				HashNext:      hashFromByte(0x22),
				File:          1,
				BlockPos:      8193,
				Height:        120000,
				Mint:          150e8,
				MoneySupply:   2100000e8,
				Flags:         FlagProofOfStake | FlagStakeEntropy | FlagStakeModifier,
				StakeModifier: 0x1122334455667788,
				PrevoutStake: OutPoint{
					Hash:  hashFromByte(0x33),
					Index: 2,
				},
				StakeTime:    1467238400,
				HashProof:    hashFromByte(0x44),
				BlockVersion: 7,
				HashPrev:     hashFromByte(0x11),
				MerkleRoot:   hashFromByte(0x55),
				Time:         1467238464,
				Bits:         0x1d00ffff,
				Nonce:        0,
			},
		},
		{
			name: "proof of work block",
			entry: &BlockIndexEntry{
				Version:      ClientVersion,
				File:         1,
				BlockPos:     88,
				Height:       1,
				Mint:         5000e8,
				MoneySupply:  5000e8,
				HashProof:    hashFromByte(0x66),
				BlockVersion: 6,
				HashPrev:     hashFromByte(0x01),
				MerkleRoot:   hashFromByte(0x02),
				Time:         1467230000,
				Bits:         0x1e0fffff,
				Nonce:        312093,
			},
		},
	}

	for _, test := range tests {
		serialized := serializeBlockIndexEntry(test.entry)
		if len(serialized) != blockIndexEntrySerializeSize {
			t.Errorf("%s: serialized size %d, want %d", test.name,
				len(serialized), blockIndexEntrySerializeSize)
			continue
		}

		got, err := deserializeBlockIndexEntry(serialized)
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if !reflect.DeepEqual(got, test.entry) {
			t.Errorf("%s: mismatch:\ngot %s\nwant %s", test.name,
				spew.Sdump(got), spew.Sdump(test.entry))
		}
	}
}

// TestBlockIndexEntrySerializationErrors ensures records of the wrong size
// are rejected.
func TestBlockIndexEntrySerializationErrors(t *testing.T) {
	valid := serializeBlockIndexEntry(&BlockIndexEntry{Version: ClientVersion})

	for _, serialized := range [][]byte{
		nil,
		valid[:blockIndexEntrySerializeSize-1],
		append(append([]byte{}, valid...), 0x00),
	} {
		if _, err := deserializeBlockIndexEntry(serialized); !isDeserializeErr(err) {
			t.Errorf("len %d: got %v, want deserialize error",
				len(serialized), err)
		}
	}
}

// TestBigNumSerialization ensures big integers round-trip, including the
// zero-pad rule for magnitudes whose top byte has the high bit set.
func TestBigNumSerialization(t *testing.T) {
	tests := []struct {
		value      *big.Int
		serialized []byte
	}{
		{big.NewInt(0), []byte{0x00}},
		{big.NewInt(1), []byte{0x01, 0x01}},
		{big.NewInt(0x7f), []byte{0x01, 0x7f}},
		{big.NewInt(0x80), []byte{0x02, 0x80, 0x00}},
		{big.NewInt(0x1234), []byte{0x02, 0x34, 0x12}},
		{new(big.Int).Lsh(big.NewInt(1), 256), append([]byte{0x21},
			append(make([]byte, 32), 0x01)...)},
	}

	for _, test := range tests {
		serialized := serializeBigNum(test.value)
		if !bytes.Equal(serialized, test.serialized) {
			t.Errorf("serializeBigNum(%v): got %x, want %x",
				test.value, serialized, test.serialized)
			continue
		}

		got, err := deserializeBigNum(serialized)
		if err != nil {
			t.Errorf("deserializeBigNum(%x): unexpected error %v",
				serialized, err)
			continue
		}
		if got.Cmp(test.value) != 0 {
			t.Errorf("deserializeBigNum(%x): got %v, want %v",
				serialized, got, test.value)
		}
	}

	if _, err := deserializeBigNum([]byte{0x02, 0x01}); !isDeserializeErr(err) {
		t.Errorf("short bignum: got %v, want deserialize error", err)
	}
}

// TestStringAndInt32Serialization covers the remaining singleton codecs.
func TestStringAndInt32Serialization(t *testing.T) {
	for _, s := range []string{"", "a", "strCheckpointPubKey contents"} {
		got, err := deserializeString(serializeString(s))
		if err != nil {
			t.Errorf("string %q: unexpected error %v", s, err)
			continue
		}
		if got != s {
			t.Errorf("string round trip: got %q, want %q", got, s)
		}
	}
	if _, err := deserializeString([]byte{0x05, 'a'}); !isDeserializeErr(err) {
		t.Errorf("short string: got %v, want deserialize error", err)
	}

	for _, n := range []int32{0, 1, -1, DatabaseVersion} {
		got, err := deserializeInt32(serializeInt32(n))
		if err != nil {
			t.Errorf("int32 %d: unexpected error %v", n, err)
			continue
		}
		if got != n {
			t.Errorf("int32 round trip: got %d, want %d", got, n)
		}
	}
	if _, err := deserializeInt32([]byte{0x01, 0x02}); !isDeserializeErr(err) {
		t.Errorf("short int32: got %v, want deserialize error", err)
	}
}

// TestTaggedKeys ensures composite keys decode back into their tag and hash
// and that namespace prefixes order keys ahead of every member.
func TestTaggedKeys(t *testing.T) {
	hash := hashFromByte(0xab)

	for _, tag := range []string{txKeyTag, blockIndexKeyTag} {
		key := taggedKey(tag, &hash)
		gotTag, gotHash, err := decodeTaggedKey(key)
		if err != nil {
			t.Fatalf("decodeTaggedKey(%q): unexpected error %v",
				tag, err)
		}
		if gotTag != tag || *gotHash != hash {
			t.Errorf("decodeTaggedKey(%q): got (%q, %v)", tag,
				gotTag, gotHash)
		}

		prefix := keyTagPrefix(tag)
		if !bytes.HasPrefix(key, prefix) {
			t.Errorf("key for %q does not start with its prefix", tag)
		}
		if bytes.Compare(prefix, key) >= 0 {
			t.Errorf("prefix for %q does not sort before its keys",
				tag)
		}
	}

	gotTag, gotHash, err := decodeTaggedKey(singletonKey(bestChainKeyName))
	if err != nil {
		t.Fatalf("decodeTaggedKey(singleton): unexpected error %v", err)
	}
	if gotTag != bestChainKeyName || gotHash != nil {
		t.Errorf("decodeTaggedKey(singleton): got (%q, %v)", gotTag,
			gotHash)
	}
}
