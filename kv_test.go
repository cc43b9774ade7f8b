// kv_test.go
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJSONRaw serves a canned JSON response from a mock handler that
// has no *testing.T in scope.
func writeJSONRaw(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}

// kvStore is an in-memory stand-in for the agent's /kv endpoints. It
// stores raw bytes and serves them the way Consul does: JSON arrays of
// pairs with base64 values, bare "true" for writes, 404 for misses.
type kvStore struct {
	mu    sync.Mutex
	data  map[string]*KVPair
	index uint64
}

func newKVStore() *kvStore {
	return &kvStore{data: make(map[string]*KVPair), index: 1}
}

func (s *kvStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
	query := r.URL.Query()

	switch r.Method {
	case http.MethodPut:
		value, _ := io.ReadAll(r.Body)
		s.index++
		pair, exists := s.data[key]
		if !exists {
			pair = &KVPair{Key: key, CreateIndex: s.index}
			s.data[key] = pair
		}
		pair.Value = value
		pair.ModifyIndex = s.index
		if flags := query.Get("flags"); flags != "" {
			f, _ := strconv.ParseUint(flags, 10, 64)
			pair.Flags = f
		}
		if session := query.Get("acquire"); session != "" {
			if pair.Session != "" && pair.Session != session {
				_, _ = w.Write([]byte("false"))
				return
			}
			pair.Session = session
			pair.LockIndex++
		}
		if session := query.Get("release"); session != "" {
			if pair.Session != session {
				_, _ = w.Write([]byte("false"))
				return
			}
			pair.Session = ""
		}
		_, _ = w.Write([]byte("true"))

	case http.MethodDelete:
		if _, recurse := query["recurse"]; recurse {
			for k := range s.data {
				if strings.HasPrefix(k, key) {
					delete(s.data, k)
				}
			}
		} else {
			delete(s.data, key)
		}
		_, _ = w.Write([]byte("true"))

	case http.MethodGet:
		w.Header().Set("X-Consul-Index", "10")
		_, recurse := query["recurse"]
		_, keysOnly := query["keys"]

		if keysOnly {
			var keys []string
			for k := range s.data {
				if strings.HasPrefix(k, key) {
					keys = append(keys, k)
				}
			}
			if keys == nil {
				http.NotFound(w, r)
				return
			}
			sort.Strings(keys)
			w.Header().Set("Content-Type", "application/json")
			writeJSONRaw(w, keys)
			return
		}

		var pairs []*KVPair
		for k, p := range s.data {
			if recurse && strings.HasPrefix(k, key) || k == key {
				pairs = append(pairs, p)
			}
		}
		if pairs == nil {
			http.NotFound(w, r)
			return
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
		w.Header().Set("Content-Type", "application/json")
		writeJSONRaw(w, pairs)
	}
}

func TestKV_PutGetRoundTrip(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	// Binary payload: base64 on the wire must be invisible to callers.
	value := []byte{0x00, 0xFF, 0x10, 'h', 'i', 0x7F}

	ok, err := client.KV().Put(ctx, &KVPair{Key: "config/app/blob", Value: value}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	pair, meta, err := client.KV().Get(ctx, "config/app/blob", nil)
	require.NoError(t, err)
	require.NotNil(t, pair)
	require.NotNil(t, meta)
	assert.Equal(t, "config/app/blob", pair.Key)
	assert.Equal(t, value, pair.Value)
}

func TestKV_GetMissingIsNilNotError(t *testing.T) {
	client := newTestClient(t, newKVStore())

	pair, meta, err := client.KV().Get(context.Background(), "does/not/exist", nil)
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.NotNil(t, meta, "a miss still carries query metadata")
}

func TestKV_ListRecurse(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	for _, key := range []string{"app/a", "app/b", "other/c"} {
		_, err := client.KV().Put(ctx, &KVPair{Key: key, Value: []byte(key)}, nil)
		require.NoError(t, err)
	}

	pairs, _, err := client.KV().List(ctx, "app", nil)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "app/a", pairs[0].Key)
	assert.Equal(t, "app/b", pairs[1].Key)
}

func TestKV_Keys(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	for _, key := range []string{"svc/web", "svc/db"} {
		_, err := client.KV().Put(ctx, &KVPair{Key: key, Value: nil}, nil)
		require.NoError(t, err)
	}

	keys, _, err := client.KV().Keys(ctx, "svc", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc/db", "svc/web"}, keys)

	keys, _, err = client.KV().Keys(ctx, "nothing-here", "", nil)
	require.NoError(t, err)
	assert.Nil(t, keys)
}

func TestKV_DeleteIsIdempotent(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	_, err := client.KV().Put(ctx, &KVPair{Key: "tmp/x", Value: []byte("v")}, nil)
	require.NoError(t, err)

	ok, err := client.KV().Delete(ctx, "tmp/x", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Deleting again still succeeds.
	ok, err = client.KV().Delete(ctx, "tmp/x", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	pair, _, err := client.KV().Get(ctx, "tmp/x", nil)
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestKV_DeleteTree(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	for _, key := range []string{"tree/a", "tree/b/c", "keep/d"} {
		_, err := client.KV().Put(ctx, &KVPair{Key: key, Value: []byte("v")}, nil)
		require.NoError(t, err)
	}

	ok, err := client.KV().DeleteTree(ctx, "tree", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	pairs, _, err := client.KV().List(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "keep/d", pairs[0].Key)
}

func TestKV_Flags(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	_, err := client.KV().Put(ctx, &KVPair{Key: "flagged", Value: []byte("v"), Flags: 42}, nil)
	require.NoError(t, err)

	pair, _, err := client.KV().Get(ctx, "flagged", nil)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, uint64(42), pair.Flags)
}

func TestKV_AcquireRelease(t *testing.T) {
	client := newTestClient(t, newKVStore())
	ctx := context.Background()

	pair := &KVPair{Key: "locks/leader", Value: []byte("me"), Session: "session-1"}

	acquired, err := client.KV().Acquire(ctx, pair, nil)
	require.NoError(t, err)
	assert.True(t, acquired)

	// A second session cannot take the held lock.
	contender := &KVPair{Key: "locks/leader", Value: []byte("other"), Session: "session-2"}
	acquired, err = client.KV().Acquire(ctx, contender, nil)
	require.NoError(t, err)
	assert.False(t, acquired)

	released, err := client.KV().Release(ctx, pair, nil)
	require.NoError(t, err)
	assert.True(t, released)

	// Lock is free again.
	acquired, err = client.KV().Acquire(ctx, contender, nil)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestKV_AcquireRequiresSession(t *testing.T) {
	client := newTestClient(t, newKVStore())

	_, err := client.KV().Acquire(context.Background(), &KVPair{Key: "locks/x"}, nil)
	require.Error(t, err)

	_, err = client.KV().Release(context.Background(), &KVPair{Key: "locks/x"}, nil)
	require.Error(t, err)
}

func TestValidateKey(t *testing.T) {
	testCases := []struct {
		name       string
		key        string
		allowEmpty bool
		want       string
		wantErr    bool
	}{
		{"simple key", "config/app", false, "config/app", false},
		{"leading slash trimmed", "/config/app", false, "config/app", false},
		{"duplicate slashes collapsed", "config//app", false, "config/app", false},
		{"empty rejected", "", false, "", true},
		{"empty allowed for prefixes", "", true, "", false},
		{"null byte rejected", "config\x00app", false, "", true},
		{"control character rejected", "config\napp", false, "", true},
		{"traversal rejected", "../etc/passwd", false, "", true},
		{"encoded traversal rejected", "%2e%2e%2fetc", false, "", true},
		{"double-encoded traversal rejected", "%252e%252e%252fetc", false, "", true},
		{"oversized rejected", strings.Repeat("k", maxKeyLength+1), false, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := validateKey(tc.key, tc.allowEmpty)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEscapeKeyPath(t *testing.T) {
	assert.Equal(t, "config/app", escapeKeyPath("config/app"))
	assert.Equal(t, "config/my%20app", escapeKeyPath("config/my app"))
}
