/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pool

import (
	"context"
	"time"

	"github.com/ngaut/sync2"

	"github.com/cectc/dbclient/client"
	"github.com/cectc/dbclient/log"
)

// recordState is a pooled connection record's lifecycle state (spec.md §3
// "Pooled connection record").
type recordState int32

const (
	stateNotConnected recordState = iota
	stateIdle
	stateInUse
	statePendingReset
)

func (s recordState) String() string {
	switch s {
	case stateNotConnected:
		return "not_connected"
	case stateIdle:
		return "idle"
	case stateInUse:
		return "in_use"
	case statePendingReset:
		return "pending_reset"
	default:
		return "unknown"
	}
}

// record is the resource ngaut/pools hands out and takes back: one slot
// in the pool, holding at most one live connection plus the state
// machine that drives setup. The pool exclusively owns records; a Conn
// returned to a caller is a non-owning reference that must come back
// through Put.
type record struct {
	dial func(ctx context.Context) (*client.Conn, error)

	state recordState
	locked sync2.AtomicBool

	conn *client.Conn
}

func newRecord(dial func(ctx context.Context) (*client.Conn, error)) *record {
	return &record{dial: dial, state: stateNotConnected}
}

// Close implements pools.Resource. ngaut/pools calls this when shrinking
// or closing the pool outright; it must never block.
func (r *record) Close() {
	if r.conn != nil {
		_ = r.conn.Quit()
		r.conn = nil
	}
	r.state = stateNotConnected
}

// setup runs the retry-with-backoff loop spec.md §4.7 describes: resolve
// and connect a not_connected record, reset or ping a pending_reset one,
// ping (and rebuild on failure) an idle one. It mutates r in place and
// returns the first error if every attempt failed.
func (r *record) setup(ctx context.Context, retries int, backoff time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}

		var err error
		switch r.state {
		case stateNotConnected:
			err = r.connect(ctx)
		case statePendingReset:
			err = r.reset(ctx)
		case stateIdle:
			err = r.ping(ctx)
		default:
			return nil
		}
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warnf("pool: setup attempt %d for record in state %s failed: %v", attempt, r.state, err)
	}
	r.state = stateNotConnected
	return lastErr
}

func (r *record) connect(ctx context.Context) error {
	conn, err := r.dial(ctx)
	if err != nil {
		return err
	}
	r.conn = conn
	r.state = stateIdle
	return nil
}

// reset sends COM_RESET_CONNECTION, falling back to a ping when the
// server doesn't support it (spec.md §9's first Open Question, resolved
// in favor of trying reset first).
func (r *record) reset(ctx context.Context) error {
	if err := r.conn.Reset(ctx); err != nil {
		if pingErr := r.conn.Ping(ctx); pingErr != nil {
			_ = r.conn.Quit()
			r.conn = nil
			r.state = stateNotConnected
			return pingErr
		}
	}
	r.state = stateIdle
	return nil
}

func (r *record) ping(ctx context.Context) error {
	if err := r.conn.Ping(ctx); err != nil {
		// TLS streams are not resumable: close and let the next attempt
		// dial a fresh connection.
		_ = r.conn.Quit()
		r.conn = nil
		r.state = stateNotConnected
		return err
	}
	return nil
}
