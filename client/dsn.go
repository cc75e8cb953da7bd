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
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	dbclienterrors "github.com/cectc/dbclient/errors"
)

// Config holds everything Connect needs to reach a server and negotiate a
// session: network address, credentials, and the connection-level knobs a
// caller can tune from a DSN string.
type Config struct {
	User      string
	Passwd    string
	Net       string
	Addr      string
	DBName    string
	Params    map[string]string
	Collation string
	Loc       *time.Location

	TLSConfig string
	tls       *tls.Config

	Timeout      time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	AllowNativePasswords      bool
	AllowOldPasswords         bool
	AllowCleartextPasswords   bool
	DisableClientDeprecateEOF bool
	MultiStatements           bool
	ClientFoundRows           bool
}

// NewConfig returns a Config populated with the same defaults dbclient
// connects with when a DSN omits them.
func NewConfig() *Config {
	return &Config{
		Collation:            "utf8mb4_general_ci",
		Loc:                  time.UTC,
		AllowNativePasswords: true,
	}
}

func (cfg *Config) Clone() *Config {
	cp := *cfg
	if cp.tls != nil {
		cp.tls = cfg.tls.Clone()
	}
	if len(cp.Params) > 0 {
		cp.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}

func (cfg *Config) normalize() error {
	if cfg.Net == "" {
		cfg.Net = "tcp"
	}
	if cfg.Addr == "" {
		switch cfg.Net {
		case "tcp":
			cfg.Addr = "127.0.0.1:3306"
		case "unix":
			cfg.Addr = "/tmp/mysql.sock"
		default:
			return errors.New("default addr for network '" + cfg.Net + "' unknown")
		}
	} else if cfg.Net == "tcp" {
		cfg.Addr = ensureHavePort(cfg.Addr)
	}

	switch cfg.TLSConfig {
	case "false", "":
	case "true":
		cfg.tls = &tls.Config{}
	case "skip-verify", "preferred":
		cfg.tls = &tls.Config{InsecureSkipVerify: true}
	default:
		return errors.New("invalid value / unknown TLS config name: " + cfg.TLSConfig)
	}
	if cfg.tls != nil && cfg.tls.ServerName == "" && !cfg.tls.InsecureSkipVerify {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err == nil {
			cfg.tls.ServerName = host
		}
	}
	return nil
}

// ParseDSN parses a data source name of the form
// [user[:password]@][net[(addr)]]/dbname[?param1=value1&paramN=valueN]
func ParseDSN(dsn string) (cfg *Config, err error) {
	cfg = NewConfig()

	foundSlash := false
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] != '/' {
			continue
		}
		foundSlash = true
		var j, k int

		if i > 0 {
			for j = i; j >= 0; j-- {
				if dsn[j] == '@' {
					for k = 0; k < j; k++ {
						if dsn[k] == ':' {
							cfg.Passwd = dsn[k+1 : j]
							break
						}
					}
					cfg.User = dsn[:k]
					break
				}
			}

			for k = j + 1; k < i; k++ {
				if dsn[k] == '(' {
					if dsn[i-1] != ')' {
						return nil, dbclienterrors.NewSQLError(dbclienterrors.ErrInvalidDSN, dbclienterrors.SSUnknownSQLState, "invalid DSN: network address not terminated (missing closing brace)")
					}
					cfg.Addr = dsn[k+1 : i-1]
					break
				}
			}
			cfg.Net = dsn[j+1 : k]
		}

		for j = i + 1; j < len(dsn); j++ {
			if dsn[j] == '?' {
				if err = parseDSNParams(cfg, dsn[j+1:]); err != nil {
					return nil, err
				}
				break
			}
		}
		cfg.DBName = dsn[i+1 : j]
		break
	}

	if !foundSlash && len(dsn) > 0 {
		return nil, dbclienterrors.NewSQLError(dbclienterrors.ErrInvalidDSN, dbclienterrors.SSUnknownSQLState, "invalid DSN: missing the slash separating the connection data from the database name")
	}

	if err = cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDSNParams(cfg *Config, params string) (err error) {
	for _, v := range strings.Split(params, "&") {
		param := strings.SplitN(v, "=", 2)
		if len(param) != 2 {
			continue
		}
		switch value := param[1]; param[0] {
		case "allowNativePasswords":
			cfg.AllowNativePasswords, err = strconv.ParseBool(value)
		case "allowOldPasswords":
			cfg.AllowOldPasswords, err = strconv.ParseBool(value)
		case "allowCleartextPasswords":
			cfg.AllowCleartextPasswords, err = strconv.ParseBool(value)
		case "clientFoundRows":
			cfg.ClientFoundRows, err = strconv.ParseBool(value)
		case "multiStatements":
			cfg.MultiStatements, err = strconv.ParseBool(value)
		case "disableClientDeprecateEOF":
			cfg.DisableClientDeprecateEOF, err = strconv.ParseBool(value)
		case "collation":
			cfg.Collation = value
		case "loc":
			if value, err = url.QueryUnescape(value); err == nil {
				cfg.Loc, err = time.LoadLocation(value)
			}
		case "readTimeout":
			cfg.ReadTimeout, err = time.ParseDuration(value)
		case "writeTimeout":
			cfg.WriteTimeout, err = time.ParseDuration(value)
		case "timeout":
			cfg.Timeout, err = time.ParseDuration(value)
		case "tls":
			cfg.TLSConfig = value
		default:
			if cfg.Params == nil {
				cfg.Params = make(map[string]string)
			}
			if cfg.Params[param[0]], err = url.QueryUnescape(value); err != nil {
				return err
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureHavePort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "3306")
	}
	return addr
}
