// Copyright 2025 The corehttpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conn

import (
	"sync"
)

// Pool tracks every live Connection so a listener can enumerate,
// count, or forcibly drain them during shutdown. Unlike the
// teacher's portPools (which tracked virtual flows keyed by 4-tuple),
// this pool exists purely for bookkeeping: Go's net package gives us
// no raw-socket-reuse primitive, so "reuse" here means reusing the
// Connection wrapper's buffers, not the kernel socket itself.
type Pool struct {
	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// NewPool returns an empty connection registry.
func NewPool() *Pool {
	return &Pool{conns: make(map[*Connection]struct{})}
}

// Track registers c and installs a reuse hook that removes it from
// the registry once its socket slot is released.
func (p *Pool) Track(c *Connection) {
	p.mu.Lock()
	p.conns[c] = struct{}{}
	p.mu.Unlock()

	c.SetReuseHook(func(c *Connection) {
		p.mu.Lock()
		delete(p.conns, c)
		p.mu.Unlock()
	})
}

// Count returns the number of connections currently tracked.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Each calls f for every tracked connection. f must not call back into
// Pool methods that take the lock.
func (p *Pool) Each(f func(*Connection)) {
	p.mu.Lock()
	snapshot := make([]*Connection, 0, len(p.conns))
	for c := range p.conns {
		snapshot = append(snapshot, c)
	}
	p.mu.Unlock()

	for _, c := range snapshot {
		f(c)
	}
}

// CloseAll actively closes every tracked connection, used during
// server shutdown.
func (p *Pool) CloseAll() {
	p.Each(func(c *Connection) {
		_ = c.ActiveClose()
	})
}
