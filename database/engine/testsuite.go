// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSuiteEngine exercises the engine contract against a backend.  Backend
// packages call it from their own tests with a constructor that opens a fresh
// store in a temporary directory.
func TestSuiteEngine(t *testing.T, new func() Engine) {
	t.Run("GetPutDelete", func(t *testing.T) {
		eng := new()
		defer eng.Close()

		key := []byte("key1")
		value := []byte("value1")

		_, err := eng.Get(key)
		require.ErrorIsf(t, err, ErrKeyNotFound, "expected missing key error")

		has, err := eng.Has(key)
		require.NoErrorf(t, err, "failed to check missing key")
		require.Falsef(t, has, "expected key to be absent")

		err = eng.Put(key, value)
		require.NoErrorf(t, err, "failed to put")

		gotValue, err := eng.Get(key)
		require.NoErrorf(t, err, "failed to get")
		require.Equalf(t, value, gotValue, "value mismatch")

		has, err = eng.Has(key)
		require.NoErrorf(t, err, "failed to check key")
		require.Truef(t, has, "expected key to be present")

		// Overwrite replaces the stored value.
		value2 := []byte("value2")
		err = eng.Put(key, value2)
		require.NoErrorf(t, err, "failed to overwrite")

		gotValue, err = eng.Get(key)
		require.NoErrorf(t, err, "failed to get after overwrite")
		require.Equalf(t, value2, gotValue, "overwritten value mismatch")

		err = eng.Delete(key)
		require.NoErrorf(t, err, "failed to delete")

		_, err = eng.Get(key)
		require.ErrorIsf(t, err, ErrKeyNotFound, "expected missing key after delete")

		// Deleting a nonexistent key is not an error.
		err = eng.Delete([]byte("never-stored"))
		require.NoErrorf(t, err, "failed to delete missing key")
	})

	t.Run("Iterator", func(t *testing.T) {
		for _, test := range []struct {
			kvs       map[string]string // random order of key-value pairs
			start     string
			expectkvs [][2]string
		}{
			{
				kvs:       map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"},
				start:     "key0",
				expectkvs: [][2]string{{"key1", "value1"}, {"key2", "value2"}, {"key3", "value3"}},
			},
			{
				kvs:       map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"},
				start:     "key2",
				expectkvs: [][2]string{{"key2", "value2"}, {"key3", "value3"}},
			},
			{
				kvs:       map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"},
				start:     "key4",
				expectkvs: nil,
			},
			{
				kvs:       map[string]string{"key10": "value10", "key11": "value11", "key20": "value20"},
				start:     "key11",
				expectkvs: [][2]string{{"key11", "value11"}, {"key20", "value20"}},
			},
		} {
			eng := new()

			for k, v := range test.kvs {
				err := eng.Put([]byte(k), []byte(v))
				require.NoErrorf(t, err, "failed to put data")
			}

			iter := eng.NewIterator([]byte(test.start))
			var idx int
			for iter.Next() {
				if idx >= len(test.expectkvs) {
					require.FailNowf(t, "unexpected key-value pair", "key: %s, value: %s", iter.Key(), iter.Value())
				}

				require.Equalf(t, []byte(test.expectkvs[idx][0]), iter.Key(), "key mismatch")
				require.Equalf(t, []byte(test.expectkvs[idx][1]), iter.Value(), "value mismatch")
				idx++
			}
			require.NoErrorf(t, iter.Error(), "iterator error")
			require.Equalf(t, len(test.expectkvs), idx, "key-value pair count mismatch")

			iter.Release()
			eng.Close()
		}
	})

	t.Run("IteratorSeek", func(t *testing.T) {
		eng := new()
		defer eng.Close()

		for _, k := range []string{"a", "b", "d"} {
			err := eng.Put([]byte(k), []byte("v"+k))
			require.NoErrorf(t, err, "failed to put data")
		}

		iter := eng.NewIterator(nil)
		defer iter.Release()

		require.Truef(t, iter.First(), "expected first pair")
		require.Equalf(t, []byte("a"), iter.Key(), "first key mismatch")

		require.Truef(t, iter.Seek([]byte("c")), "expected pair at or after seek key")
		require.Equalf(t, []byte("d"), iter.Key(), "seek key mismatch")
		require.Truef(t, iter.Valid(), "expected valid position")

		require.Falsef(t, iter.Next(), "expected exhaustion")
		require.Falsef(t, iter.Valid(), "expected invalid position after exhaustion")
		require.Nil(t, iter.Key(), "expected nil key after exhaustion")
		require.Nil(t, iter.Value(), "expected nil value after exhaustion")
	})

	t.Run("BatchWrite", func(t *testing.T) {
		eng := new()
		defer eng.Close()

		err := eng.Put([]byte("stale"), []byte("old"))
		require.NoErrorf(t, err, "failed to put")

		batch := eng.NewBatch()
		batch.Put([]byte("key1"), []byte("value1"))
		batch.Put([]byte("key2"), []byte("value2"))
		batch.Delete([]byte("stale"))
		require.Equalf(t, 3, batch.Count(), "batch count mismatch")

		err = eng.Write(batch)
		require.NoErrorf(t, err, "failed to write batch")

		gotValue, err := eng.Get([]byte("key1"))
		require.NoErrorf(t, err, "failed to get batched key")
		require.Equalf(t, []byte("value1"), gotValue, "batched value mismatch")

		_, err = eng.Get([]byte("stale"))
		require.ErrorIsf(t, err, ErrKeyNotFound, "expected batched delete to apply")
	})

	t.Run("BatchReplayReset", func(t *testing.T) {
		eng := new()
		defer eng.Close()

		batch := eng.NewBatch()
		batch.Put([]byte("key1"), []byte("value1"))
		batch.Delete([]byte("key2"))
		batch.Put([]byte("key1"), []byte("value2"))

		var got [][3]string
		err := batch.Replay(replayRecorder{&got})
		require.NoErrorf(t, err, "failed to replay batch")
		require.Equalf(t, [][3]string{
			{"put", "key1", "value1"},
			{"del", "key2", ""},
			{"put", "key1", "value2"},
		}, got, "replay order mismatch")

		batch.Reset()
		require.Equalf(t, 0, batch.Count(), "expected empty batch after reset")

		got = nil
		err = batch.Replay(replayRecorder{&got})
		require.NoErrorf(t, err, "failed to replay reset batch")
		require.Emptyf(t, got, "expected no mutations after reset")
	})

	t.Run("Close", func(t *testing.T) {
		eng := new()

		iter := eng.NewIterator(nil)
		require.NoErrorf(t, iter.Error(), "failed to create iterator")
		iter.Release()
		iter.Release() // multiple calls to release should be safe

		err := eng.Close()
		require.NoErrorf(t, err, "failed to close engine")

		// Ensure that the engine is closed.
		err = eng.Close()
		require.Errorf(t, err, "expected to get error when closing closed engine")

		_, err = eng.Get([]byte("key"))
		require.Errorf(t, err, "expected to get error when reading closed engine")

		err = eng.Put([]byte("key"), []byte("value"))
		require.Errorf(t, err, "expected to get error when writing closed engine")
	})
}

type replayRecorder struct {
	got *[][3]string
}

func (r replayRecorder) Put(key, value []byte) {
	*r.got = append(*r.got, [3]string{"put", string(key), string(value)})
}

func (r replayRecorder) Delete(key []byte) {
	*r.got = append(*r.got, [3]string{"del", string(key), ""})
}
