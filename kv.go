// kv.go: key/value store endpoints
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agilira/go-errors"
)

// KV exposes the /kv endpoints of Consul's key/value store.
type KV struct {
	c *Client
}

// KVPair is a single entry in the KV store. Value carries the raw
// bytes; Consul's base64 wire encoding is handled transparently by the
// JSON codec.
type KVPair struct {
	Key         string `json:"Key"`
	CreateIndex uint64 `json:"CreateIndex"`
	ModifyIndex uint64 `json:"ModifyIndex"`
	LockIndex   uint64 `json:"LockIndex"`
	Flags       uint64 `json:"Flags"`
	Value       []byte `json:"Value"`
	Session     string `json:"Session,omitempty"`
}

// maxKeyLength bounds key paths to prevent DoS via oversized URLs.
const maxKeyLength = 2048

// dangerousKeyPatterns are path fragments that indicate traversal or
// system-path probing. Keys travel inside URL paths, so they get the
// same scrutiny file paths would.
var dangerousKeyPatterns = []string{
	"../", "..\\", "./../", ".\\..\\",
}

// validateKey validates and normalizes a KV key or prefix before it is
// placed in a request path.
//
// SECURITY: Rejects null bytes, control characters, URL-encoded
// traversal sequences and oversized keys. Leading/trailing slashes and
// duplicate separators are normalized away; Consul keys never start
// with a slash.
func validateKey(key string, allowEmpty bool) (string, error) {
	if key == "" {
		if allowEmpty {
			return "", nil
		}
		return "", errors.New(ErrCodeInvalidConfig, "key must not be empty")
	}

	if len(key) > maxKeyLength {
		return "", errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("key too long: %d bytes (max %d)", len(key), maxKeyLength))
	}

	for i, b := range []byte(key) {
		if b == 0 {
			return "", errors.New(ErrCodeInvalidConfig,
				"null byte in key not allowed")
		}
		if b < 32 {
			return "", errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("control character (0x%02x) at position %d in key not allowed", b, i))
		}
	}

	// Decode repeatedly so %252e%252e%252f style double encoding
	// cannot smuggle a traversal sequence past the check.
	decoded := key
	for i := 0; i < 10; i++ {
		next, err := url.QueryUnescape(decoded)
		if err != nil || next == decoded {
			break
		}
		decoded = next
	}
	lower := strings.ToLower(decoded)
	for _, pattern := range dangerousKeyPatterns {
		if strings.Contains(lower, pattern) {
			return "", errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("path traversal pattern %q detected in key", pattern))
		}
	}

	normalized := strings.Trim(key, "/")
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}
	if normalized == "" && !allowEmpty {
		return "", errors.New(ErrCodeInvalidConfig, "key must not be empty")
	}
	return normalized, nil
}

// escapeKeyPath escapes each segment of a key for use in a URL path
// while preserving the slashes that separate them.
func escapeKeyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// Get returns the entry stored at key, or nil (with a nil error) when
// no such key exists. A missing key is an outcome, not a failure.
func (k *KV) Get(ctx context.Context, key string, q *QueryOptions) (*KVPair, *QueryMeta, error) {
	key, err := validateKey(key, false)
	if err != nil {
		return nil, nil, err
	}
	pairs, meta, err := k.getInternal(ctx, key, nil, q)
	if err != nil {
		return nil, nil, err
	}
	if len(pairs) == 0 {
		return nil, meta, nil
	}
	return pairs[0], meta, nil
}

// List returns all entries whose keys share the given prefix. An empty
// prefix lists the entire store.
func (k *KV) List(ctx context.Context, prefix string, q *QueryOptions) ([]*KVPair, *QueryMeta, error) {
	prefix, err := validateKey(prefix, true)
	if err != nil {
		return nil, nil, err
	}
	params := map[string]string{"recurse": ""}
	return k.getInternal(ctx, prefix, params, q)
}

// Keys returns only the key names under the given prefix. A non-empty
// separator stops recursion at it, yielding directory-style listings.
func (k *KV) Keys(ctx context.Context, prefix, separator string, q *QueryOptions) ([]string, *QueryMeta, error) {
	prefix, err := validateKey(prefix, true)
	if err != nil {
		return nil, nil, err
	}
	r := k.c.newRequest(http.MethodGet, "/kv/"+escapeKeyPath(prefix))
	r.setQueryOptions(q)
	r.params.Set("keys", "")
	if separator != "" {
		r.params.Set("separator", separator)
	}

	elapsed, resp, err := k.c.doRequest(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		closeResponseBody(resp)
		meta, metaErr := parseQueryMeta(resp, elapsed)
		if metaErr != nil {
			return nil, nil, metaErr
		}
		return nil, meta, nil
	}
	if err := k.c.requireOK(r, resp); err != nil {
		return nil, nil, err
	}
	meta, err := parseQueryMeta(resp, elapsed)
	if err != nil {
		closeResponseBody(resp)
		return nil, nil, err
	}
	var out []string
	if err := k.c.decodeBody(resp, &out); err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// getInternal performs a KV read, translating 404 into an empty
// result.
func (k *KV) getInternal(ctx context.Context, key string, params map[string]string, q *QueryOptions) ([]*KVPair, *QueryMeta, error) {
	r := k.c.newRequest(http.MethodGet, "/kv/"+escapeKeyPath(key))
	r.setQueryOptions(q)
	for name, value := range params {
		r.params.Set(name, value)
	}

	elapsed, resp, err := k.c.doRequest(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		closeResponseBody(resp)
		meta, metaErr := parseQueryMeta(resp, elapsed)
		if metaErr != nil {
			return nil, nil, metaErr
		}
		return nil, meta, nil
	}
	if err := k.c.requireOK(r, resp); err != nil {
		return nil, nil, err
	}
	meta, err := parseQueryMeta(resp, elapsed)
	if err != nil {
		closeResponseBody(resp)
		return nil, nil, err
	}
	var out []*KVPair
	if err := k.c.decodeBody(resp, &out); err != nil {
		return nil, nil, err
	}
	return out, meta, nil
}

// Put stores the given pair, creating the key when absent. The agent
// answers true on success.
func (k *KV) Put(ctx context.Context, pair *KVPair, w *WriteOptions) (bool, error) {
	return k.putInternal(ctx, pair, nil, w)
}

// Acquire attempts to take the lock on pair.Key with the session in
// pair.Session. It returns true when the lock was acquired. The key is
// created if needed; its LockIndex is incremented on success.
func (k *KV) Acquire(ctx context.Context, pair *KVPair, w *WriteOptions) (bool, error) {
	if pair == nil || pair.Session == "" {
		return false, errors.New(ErrCodeInvalidConfig,
			"acquire requires a session on the pair")
	}
	return k.putInternal(ctx, pair, map[string]string{"acquire": pair.Session}, w)
}

// Release gives up the lock on pair.Key held by the session in
// pair.Session.
func (k *KV) Release(ctx context.Context, pair *KVPair, w *WriteOptions) (bool, error) {
	if pair == nil || pair.Session == "" {
		return false, errors.New(ErrCodeInvalidConfig,
			"release requires a session on the pair")
	}
	return k.putInternal(ctx, pair, map[string]string{"release": pair.Session}, w)
}

func (k *KV) putInternal(ctx context.Context, pair *KVPair, params map[string]string, w *WriteOptions) (bool, error) {
	if pair == nil {
		return false, errors.New(ErrCodeInvalidConfig, "pair must not be nil")
	}
	key, err := validateKey(pair.Key, false)
	if err != nil {
		return false, err
	}

	r := k.c.newRequest(http.MethodPut, "/kv/"+escapeKeyPath(key))
	r.setWriteOptions(w)
	if pair.Flags != 0 {
		r.params.Set("flags", strconv.FormatUint(pair.Flags, 10))
	}
	for name, value := range params {
		r.params.Set(name, value)
	}
	// The value is written verbatim; Consul stores the raw bytes, not
	// a JSON document.
	r.rawBody = pair.Value
	if r.rawBody == nil {
		r.rawBody = []byte{}
	}

	return k.boolRequest(ctx, r)
}

// Delete removes a single key. Deleting a nonexistent key still
// reports success; the operation is idempotent.
func (k *KV) Delete(ctx context.Context, key string, w *WriteOptions) (bool, error) {
	key, err := validateKey(key, false)
	if err != nil {
		return false, err
	}
	r := k.c.newRequest(http.MethodDelete, "/kv/"+escapeKeyPath(key))
	r.setWriteOptions(w)
	return k.boolRequest(ctx, r)
}

// DeleteTree removes all keys sharing the given prefix.
func (k *KV) DeleteTree(ctx context.Context, prefix string, w *WriteOptions) (bool, error) {
	prefix, err := validateKey(prefix, false)
	if err != nil {
		return false, err
	}
	r := k.c.newRequest(http.MethodDelete, "/kv/"+escapeKeyPath(prefix))
	r.setWriteOptions(w)
	r.params.Set("recurse", "")
	return k.boolRequest(ctx, r)
}

// boolRequest performs the request and parses Consul's bare "true" or
// "false" response body.
func (k *KV) boolRequest(ctx context.Context, r *request) (bool, error) {
	_, resp, err := k.c.doRequest(ctx, r)
	if err != nil {
		return false, err
	}
	if err := k.c.requireOK(r, resp); err != nil {
		return false, err
	}
	defer closeResponseBody(resp)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, errors.Wrap(err, ErrCodeTransport,
			"failed to read response from Consul agent")
	}
	result, err := strconv.ParseBool(strings.TrimSpace(string(raw)))
	if err != nil {
		return false, errors.Wrap(err, ErrCodeDecode,
			fmt.Sprintf("unexpected boolean response %q", strings.TrimSpace(string(raw))))
	}
	return result, nil
}
