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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSNFull(t *testing.T) {
	cfg, err := ParseDSN("user:pass@tcp(127.0.0.1:3307)/mydb?timeout=2s&multiStatements=true&collation=utf8mb4_unicode_ci")
	require.NoError(t, err)
	assert.Equal(t, "user", cfg.User)
	assert.Equal(t, "pass", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "127.0.0.1:3307", cfg.Addr)
	assert.Equal(t, "mydb", cfg.DBName)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.MultiStatements)
	assert.Equal(t, "utf8mb4_unicode_ci", cfg.Collation)
}

func TestParseDSNDefaultsWhenAddrOmitted(t *testing.T) {
	cfg, err := ParseDSN("root:@/sakila")
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
	assert.Equal(t, "sakila", cfg.DBName)
}

func TestParseDSNAddsDefaultPort(t *testing.T) {
	cfg, err := ParseDSN("root:@tcp(db.example.com)/sakila")
	require.NoError(t, err)
	assert.Equal(t, "db.example.com:3306", cfg.Addr)
}

func TestParseDSNUnix(t *testing.T) {
	cfg, err := ParseDSN("root:@unix(/var/run/mysqld/mysqld.sock)/sakila")
	require.NoError(t, err)
	assert.Equal(t, "unix", cfg.Net)
	assert.Equal(t, "/var/run/mysqld/mysqld.sock", cfg.Addr)
}

func TestParseDSNMissingSlashFails(t *testing.T) {
	_, err := ParseDSN("root:@tcp(127.0.0.1:3306)")
	require.Error(t, err)
}

func TestParseDSNUnterminatedAddrFails(t *testing.T) {
	_, err := ParseDSN("root:@tcp(127.0.0.1:3306/sakila")
	require.Error(t, err)
}

func TestParseDSNTLSSkipVerify(t *testing.T) {
	cfg, err := ParseDSN("root:@tcp(127.0.0.1:3306)/sakila?tls=skip-verify")
	require.NoError(t, err)
	require.NotNil(t, cfg.tls)
	assert.True(t, cfg.tls.InsecureSkipVerify)
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg, err := ParseDSN("root:@tcp(127.0.0.1:3306)/sakila?tls=true&foo=bar")
	require.NoError(t, err)
	clone := cfg.Clone()
	clone.Params["foo"] = "changed"
	clone.tls.ServerName = "changed"
	assert.Equal(t, "bar", cfg.Params["foo"])
	assert.NotEqual(t, "changed", cfg.tls.ServerName)
}
