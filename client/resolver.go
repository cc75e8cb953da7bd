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
)

// Resolver is the async "resolve host:port -> endpoints" interface spec.md
// §6 says the pool (and, transitively, Connect's resolve step in §4.5)
// consumes. Splitting it out of Connect lets the pool's setup coroutine
// share the exact same resolution behaviour a bare Connect call uses.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]string, error)
}

// netResolver is the default Resolver, backed by net.DefaultResolver.
type netResolver struct{}

// DefaultResolver resolves via the standard library's DNS resolver.
var DefaultResolver Resolver = netResolver{}

func (netResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}
