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

// Package pool implements a bounded set of pooled connections with
// lifecycle states, fair waiter queuing, health-check-on-acquire, and
// retry-with-backoff setup (spec.md §4.7). It wraps github.com/ngaut/pools'
// channel-backed ResourcePool — the same mechanics vitess's
// go/pools.ResourcePool implements — with the not_connected/idle/in_use/
// pending_reset record state machine the pooled-connection model actually
// calls for.
package pool

import (
	"context"
	"time"

	"github.com/ngaut/pools"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cectc/dbclient/client"
	"github.com/cectc/dbclient/errors"
)

// Options configures a Pool; zero values are replaced by the defaults
// spec.md §6 names.
type Options struct {
	InitialSize    int
	MaxSize        int
	AcquireTimeout time.Duration
	SetupRetries   int
	SetupBackoff   time.Duration
	IdleTimeout    time.Duration
}

func (o *Options) setDefaults() {
	if o.MaxSize == 0 {
		o.MaxSize = 10
	}
	if o.AcquireTimeout == 0 {
		o.AcquireTimeout = 10 * time.Second
	}
	if o.SetupRetries == 0 {
		o.SetupRetries = 2
	}
	if o.SetupBackoff == 0 {
		o.SetupBackoff = time.Second
	}
}

// Pool is a bounded manager of *client.Conn, handed out via Get and
// returned via a Handle's Release.
type Pool struct {
	opts Options
	rp   *pools.ResourcePool
	dial func(ctx context.Context) (*client.Conn, error)
}

// New builds a Pool whose records are connected with dial. If
// opts.InitialSize > 0, that many records are eagerly connected before
// New returns (spec.md §9's second Open Question, resolved in favor of
// eager initial connect).
func New(dial func(ctx context.Context) (*client.Conn, error), opts Options) (*Pool, error) {
	opts.setDefaults()
	if opts.InitialSize > opts.MaxSize {
		opts.InitialSize = opts.MaxSize
	}

	p := &Pool{opts: opts, dial: dial}
	factory := func() (pools.Resource, error) {
		return newRecord(dial), nil
	}
	capacity := opts.InitialSize
	if capacity == 0 {
		capacity = opts.MaxSize
	}
	p.rp = pools.NewResourcePool(factory, capacity, opts.MaxSize, opts.IdleTimeout)

	if opts.InitialSize > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), opts.AcquireTimeout)
		defer cancel()
		handles := make([]*Handle, 0, opts.InitialSize)
		for i := 0; i < opts.InitialSize; i++ {
			h, err := p.Get(ctx)
			if err != nil {
				for _, done := range handles {
					done.Release(true)
				}
				return nil, err
			}
			handles = append(handles, h)
		}
		for _, h := range handles {
			h.Release(true)
		}
	}
	return p, nil
}

// Handle is a non-owning reference to a pooled record; it must be
// Released exactly once.
type Handle struct {
	pool *Pool
	rec  *record
}

// Conn returns the underlying connection. It is valid only until
// Release is called.
func (h *Handle) Conn() *client.Conn { return h.rec.conn }

// Release returns the record to the pool (spec.md §4.7 "Return"). clean
// asserts the connection is known not to need a reset (e.g. it was never
// used); otherwise the record is marked pending_reset and reset on its
// next setup pass. Release never blocks and never panics.
func (h *Handle) Release(clean bool) {
	if clean {
		h.rec.state = stateIdle
	} else {
		h.rec.state = statePendingReset
	}
	h.rec.locked.Set(false)
	h.pool.rp.Put(h.rec)
}

// Get acquires a record, preferring (per ngaut/pools' own FIFO channel
// queue) whichever is already available, runs its setup pass, and
// returns a Handle exclusively borrowing it. The context's deadline (or
// opts.AcquireTimeout if none is set) bounds the wait.
func (p *Pool) Get(ctx context.Context) (*Handle, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()
	}

	res, err := p.rp.Get(ctx)
	if err != nil {
		if err == pools.ErrTimeout || ctx.Err() != nil {
			return nil, errors.NewSQLError(errors.ErrPoolTimeout, errors.SSUnknownSQLState, "acquiring a connection timed out")
		}
		if err == pools.ErrClosed {
			return nil, errors.NewSQLError(errors.ErrPoolClosed, errors.SSUnknownSQLState, "pool is closed")
		}
		return nil, err
	}
	rec := res.(*record)
	rec.locked.Set(true)

	if err := rec.setup(ctx, p.opts.SetupRetries, p.opts.SetupBackoff); err != nil {
		rec.locked.Set(false)
		p.rp.Put(rec)
		return nil, err
	}
	rec.state = stateInUse
	return &Handle{pool: p, rec: rec}, nil
}

// SetCapacity resizes the pool, blocking until enough in-use records are
// returned if shrinking.
func (p *Pool) SetCapacity(capacity int) error {
	return p.rp.SetCapacity(capacity, true)
}

// SetIdleTimeout changes how long an idle record may sit before it is
// closed and its slot freed.
func (p *Pool) SetIdleTimeout(idleTimeout time.Duration) {
	p.rp.SetIdleTimeout(idleTimeout)
}

// Close empties the pool, closing every record's connection. It waits
// for outstanding handles to be released.
func (p *Pool) Close() { p.rp.Close() }

// StatsJSON mirrors the teacher's pkg/sql.DB.StatsJSON: a flat JSON blob
// suitable for an admin/debug endpoint.
func (p *Pool) StatsJSON() string { return p.rp.StatsJSON() }

// Collectors returns the prometheus collectors exposing the pool's
// vitess-style State fields as gauges, generalizing StatsJSON into a
// scrapeable form.
func (p *Pool) Collectors() []prometheus.Collector {
	g := func(name, help string, get func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, get)
	}
	return []prometheus.Collector{
		g("dbclient_pool_capacity", "configured pool capacity", func() float64 { return float64(p.rp.Capacity()) }),
		g("dbclient_pool_in_use", "records currently checked out", func() float64 { return float64(p.rp.InUse()) }),
		g("dbclient_pool_available", "records available for acquire", func() float64 { return float64(p.rp.Available()) }),
		g("dbclient_pool_wait_count", "total number of times Get had to wait", func() float64 { return float64(p.rp.WaitCount()) }),
		g("dbclient_pool_wait_time_seconds", "cumulative wait time in Get", func() float64 { return p.rp.WaitTime().Seconds() }),
		g("dbclient_pool_idle_closed", "records closed for sitting idle past the timeout", func() float64 { return float64(p.rp.IdleClosed()) }),
	}
}
