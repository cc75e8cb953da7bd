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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cectc/dbclient/client"
)

func TestRecordStateString(t *testing.T) {
	assert.Equal(t, "not_connected", stateNotConnected.String())
	assert.Equal(t, "idle", stateIdle.String())
	assert.Equal(t, "in_use", stateInUse.String())
	assert.Equal(t, "pending_reset", statePendingReset.String())
	assert.Equal(t, "unknown", recordState(99).String())
}

func TestRecordSetupConnectsNotConnected(t *testing.T) {
	addr := startFakeServer(t)
	r := newRecord(fakeDialer(addr))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.setup(ctx, 2, 10*time.Millisecond))
	assert.Equal(t, stateIdle, r.state)
	require.NotNil(t, r.conn)
	r.Close()
}

func TestRecordSetupPingsIdle(t *testing.T) {
	addr := startFakeServer(t)
	r := newRecord(fakeDialer(addr))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.setup(ctx, 2, 10*time.Millisecond))
	require.NoError(t, r.setup(ctx, 2, 10*time.Millisecond))
	assert.Equal(t, stateIdle, r.state)
	r.Close()
}

func TestRecordSetupResetsPendingReset(t *testing.T) {
	addr := startFakeServer(t)
	r := newRecord(fakeDialer(addr))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.setup(ctx, 2, 10*time.Millisecond))
	r.state = statePendingReset
	require.NoError(t, r.setup(ctx, 2, 10*time.Millisecond))
	assert.Equal(t, stateIdle, r.state)
	r.Close()
}

func TestRecordSetupFailsAfterRetriesExhausted(t *testing.T) {
	r := newRecord(func(ctx context.Context) (*client.Conn, error) {
		return nil, assert.AnError
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := r.setup(ctx, 2, 10*time.Millisecond)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, stateNotConnected, r.state)
}

func TestRecordCloseQuitsConnection(t *testing.T) {
	addr := startFakeServer(t)
	r := newRecord(fakeDialer(addr))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.connect(ctx))
	r.Close()
	assert.Nil(t, r.conn)
	assert.Equal(t, stateNotConnected, r.state)
}
