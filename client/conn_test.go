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

package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cectc/dbclient/mysql"
	"github.com/cectc/dbclient/mysqlconst"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dialCfg(addr string) *Config {
	cfg := NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.User = "root"
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestConnectAndPing(t *testing.T) {
	srv := &fakeServer{
		caps:          mysqlconst.BaseClientCapabilities,
		plugin:        mysqlconst.AuthNativePassword,
		handleCommand: okOnPingResetQuit,
	}
	addr := startFakeServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Connect(ctx, dialCfg(addr), nil)
	require.NoError(t, err)
	defer conn.Quit()

	assert.Equal(t, "8.0.30-fake", conn.ServerVersion())
	assert.Equal(t, uint32(1), conn.ConnectionID())

	require.NoError(t, conn.Ping(ctx))
	require.NoError(t, conn.Reset(ctx))
}

func TestConnectRejectsHandshakeError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		sc := mysql.NewConn(c)
		_ = sc.WritePacket(buildErr(1045, "28000", "Access denied"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Connect(ctx, dialCfg(ln.Addr().String()), nil)
	require.Error(t, err)
}

// TestQueryMultiResultSet drives a CALL-shaped COM_QUERY reply: two
// resultsets, the first terminated by an OK carrying
// ServerMoreResultsExists, the second by a plain OK — exercising
// spec.md §3's "transitions instead to reading_head for the next
// resultset" and §4.5's "more results" path end to end.
func TestQueryMultiResultSet(t *testing.T) {
	srv := &fakeServer{
		caps:   mysqlconst.BaseClientCapabilities,
		plugin: mysqlconst.AuthNativePassword,
		handleCommand: func(sc *mysql.Conn, data []byte) bool {
			if len(data) == 0 {
				return true
			}
			switch data[0] {
			case mysqlconst.ComQuit:
				return true
			case mysqlconst.ComQuery:
				_ = sc.WritePacket([]byte{0x01})
				_ = sc.WritePacket(buildColumnDef("a"))
				_ = sc.WritePacket(buildTextRow("1"))
				_ = sc.WritePacket(buildOKWithMoreResults())

				_ = sc.WritePacket([]byte{0x01})
				_ = sc.WritePacket(buildColumnDef("b"))
				_ = sc.WritePacket(buildTextRow("2"))
				_ = sc.WritePacket(buildOK())
				return false
			default:
				_ = sc.WritePacket(buildOK())
				return false
			}
		},
	}
	addr := startFakeServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Connect(ctx, dialCfg(addr), nil)
	require.NoError(t, err)
	defer conn.Quit()

	result, rows, err := conn.Query("CALL two_resultsets()")
	require.NoError(t, err)
	require.Nil(t, result)
	require.NotNil(t, rows)

	require.True(t, rows.Next())
	assert.Equal(t, "1", string(rows.Row()[0].Raw))
	require.False(t, rows.Next())
	require.NoError(t, rows.Err())
	require.NotNil(t, rows.Result())
	assert.True(t, rows.Result().MoreResultsExists())

	require.True(t, rows.NextResultSet())
	require.True(t, rows.Next())
	assert.Equal(t, "2", string(rows.Row()[0].Raw))
	require.False(t, rows.Next())
	require.NoError(t, rows.Err())
	require.NotNil(t, rows.Result())
	assert.False(t, rows.Result().MoreResultsExists())

	require.False(t, rows.NextResultSet())
}

func TestQuitClosesConnection(t *testing.T) {
	srv := &fakeServer{
		caps:          mysqlconst.BaseClientCapabilities,
		plugin:        mysqlconst.AuthNativePassword,
		handleCommand: okOnPingResetQuit,
	}
	addr := startFakeServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Connect(ctx, dialCfg(addr), nil)
	require.NoError(t, err)
	require.NoError(t, conn.Quit())

	err = conn.Ping(ctx)
	assert.Error(t, err)
}
