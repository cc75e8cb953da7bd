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
	"os"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"

	"github.com/cectc/dbclient/log"
)

// fileSource is what a DSN config file on disk or an etcd value unmarshals
// into: a single data source's DSN plus the pool sizing a caller dialing
// through EtcdSource/LoadFile would otherwise have to hardcode.
type fileSource struct {
	DSN         string `yaml:"dsn" json:"dsn"`
	InitialSize int    `yaml:"initial_size" json:"initial_size"`
	MaxSize     int    `yaml:"max_size" json:"max_size"`
}

// LoadFile reads a YAML data source definition from path and parses its
// dsn field into a *Config, mirroring the teacher's own config.Load.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading data source file %q", path)
	}
	var src fileSource
	if err := yaml.Unmarshal(content, &src); err != nil {
		return nil, errors.WithMessagef(err, "parsing data source file %q", path)
	}
	return ParseDSN(src.DSN)
}

// EtcdSource watches a single etcd key holding a YAML-encoded data source
// definition and delivers a freshly parsed *Config each time it changes,
// so a long-lived pool can pick up rotated credentials without a restart.
type EtcdSource struct {
	client *clientv3.Client
	key    string
}

// NewEtcdSource dials etcd with cfg and wires up a watcher on key. The
// caller owns the returned source and must call Close when done.
func NewEtcdSource(cfg clientv3.Config, key string) (*EtcdSource, error) {
	cli, err := clientv3.New(cfg)
	if err != nil {
		return nil, errors.WithMessage(err, "dialing etcd")
	}
	return &EtcdSource{client: cli, key: key}, nil
}

// Load fetches the current value of the watched key and parses it.
func (s *EtcdSource) Load(ctx context.Context) (*Config, error) {
	resp, err := s.client.Get(ctx, s.key, clientv3.WithSerializable())
	if err != nil {
		return nil, errors.WithMessagef(err, "getting etcd key %q", s.key)
	}
	if len(resp.Kvs) == 0 {
		return nil, errors.Errorf("etcd key %q not found", s.key)
	}
	var src fileSource
	if err := yaml.Unmarshal(resp.Kvs[0].Value, &src); err != nil {
		return nil, errors.WithMessagef(err, "parsing etcd key %q", s.key)
	}
	return ParseDSN(src.DSN)
}

// Watch streams every subsequent *Config the key is updated with until ctx
// is cancelled. Unmarshal or DSN-parse failures are logged and skipped
// rather than closing the channel, so one bad write doesn't stop the feed.
func (s *EtcdSource) Watch(ctx context.Context) <-chan *Config {
	out := make(chan *Config)
	go func() {
		defer close(out)
		wch := s.client.Watch(clientv3.WithRequireLeader(ctx), s.key)
		for resp := range wch {
			if resp.Err() != nil {
				log.Errorf("client: etcd watch on %q failed: %v", s.key, resp.Err())
				return
			}
			for _, ev := range resp.Events {
				var src fileSource
				if err := yaml.Unmarshal(ev.Kv.Value, &src); err != nil {
					log.Warnf("client: skipping unparseable data source update on %q: %v", s.key, err)
					continue
				}
				cfg, err := ParseDSN(src.DSN)
				if err != nil {
					log.Warnf("client: skipping invalid dsn update on %q: %v", s.key, err)
					continue
				}
				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close releases the underlying etcd client.
func (s *EtcdSource) Close() error { return s.client.Close() }
