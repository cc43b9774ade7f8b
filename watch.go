// watch.go: blocking-query watch over KV entries
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"time"

	"github.com/agilira/go-errors"
)

// Watch monitors a KV key using Consul's blocking queries and delivers
// a *KVPair whenever the entry changes. Blocking queries are the
// mechanism Consul's own tooling uses to watch state: the agent holds
// each request open until the key's ModifyIndex passes the supplied
// wait index, so updates arrive near-instantly with one outstanding
// request instead of a poll loop.
//
// A deleted key is delivered as a nil *KVPair; deletion is an outcome,
// not an error. Transport failures are retried with exponential
// backoff and jitter (this is the watch's loop semantics, not per-call
// retry; single-shot operations never retry). The channel is closed
// when ctx is cancelled.
//
// The number of concurrently active watches per client is capped; the
// cap counts against CONSUL_RESOURCE_LIMIT_EXCEEDED when exhausted.
func (k *KV) Watch(ctx context.Context, key string, q *QueryOptions) (<-chan *KVPair, error) {
	key, err := validateKey(key, false)
	if err != nil {
		return nil, err
	}
	if k.c.closed.Load() {
		return nil, errors.New(ErrCodeClientClosed, "consul client has been closed")
	}
	if current := k.c.watchCount.Load(); current >= maxActiveWatches {
		return nil, errors.New(ErrCodeResourceLimit,
			fmt.Sprintf("maximum active watches exceeded: %d/%d", current, maxActiveWatches))
	}
	k.c.watchCount.Add(1)

	// Buffered so a slow consumer does not stall the query loop for
	// the first update.
	updates := make(chan *KVPair, 1)

	opts := QueryOptions{}
	if q != nil {
		opts = *q
	}
	if opts.WaitTime == 0 {
		opts.WaitTime = 5 * time.Minute // Consul's maximum blocking wait
	}

	go k.watchLoop(ctx, key, opts, updates)
	return updates, nil
}

// watchLoop runs the blocking-query cycle until the context ends.
func (k *KV) watchLoop(ctx context.Context, key string, opts QueryOptions, updates chan *KVPair) {
	defer func() {
		close(updates)
		k.c.watchCount.Add(-1)
	}()

	const (
		baseDelay   = 1 * time.Second
		maxDelay    = 30 * time.Second
		maxAttempts = 10
	)

	var lastIndex uint64
	var delivered bool
	backoffAttempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opts.WaitIndex = lastIndex
		pair, meta, err := k.Get(ctx, key, &opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backoffAttempt++
			delay := backoffDelay(backoffAttempt-1, baseDelay, maxDelay)
			// Reset after enough attempts so one long outage does not
			// pin the loop at the cap forever.
			if backoffAttempt >= maxAttempts {
				backoffAttempt = 0
			}
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}
		backoffAttempt = 0

		if meta == nil {
			continue
		}
		// Index regression means the agent restarted or the key was
		// reset; start over from scratch.
		if meta.LastIndex < lastIndex {
			lastIndex = 0
			continue
		}
		if meta.LastIndex == lastIndex && delivered {
			continue // wait timed out with no change
		}
		lastIndex = meta.LastIndex
		delivered = true

		select {
		case updates <- pair:
		case <-time.After(watchChannelTimeout):
			// Consumer stalled past the grace period; drop this
			// update rather than deadlock the loop.
		case <-ctx.Done():
			return
		}
	}
}

// backoffDelay computes exponential backoff with jitter:
// baseDelay * 2^attempt, capped at maxDelay, plus 0-10% jitter.
func backoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay + secureJitter(delay)
}

// secureJitter derives 0-10% jitter from crypto/rand so retry timing
// across many clients stays unpredictable and spread out.
func secureJitter(delay time.Duration) time.Duration {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	randUint32 := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	randFloat := float64(randUint32) / float64(^uint32(0))
	return time.Duration(randFloat * float64(delay) * 0.1)
}
