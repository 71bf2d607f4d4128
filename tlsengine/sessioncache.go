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

package tlsengine

import (
	"crypto/rand"
	"crypto/tls"
	"sync"
	"time"
)

// SessionCache rotates the server's session-ticket keys on a fixed
// interval. Spec §4.I describes an OpenSSL-style cache keyed by
// session-id hex string with new/get/remove callbacks plus a
// ticket-key callback that checks a key-name prefix; crypto/tls has no
// equivalent server-side session-id map (Go's server resumption is
// ticket-only, and SetSessionTicketKeys already handles key-name
// matching/rotation internally), so this narrows to what crypto/tls
// actually exposes: rotating the active ticket key set on the same
// ticker-driven goroutine idiom as common/socket/ttlcache.go's gc().
//
// The newest key is always tried first for encryption; all retained
// keys remain valid for decrypting tickets issued while they were
// still current, which is exactly SetSessionTicketKeys' own contract.
type SessionCache struct {
	mu       sync.Mutex
	keys     [][32]byte
	keep     int
	interval time.Duration
	done     chan struct{}
}

// NewSessionCache returns a cache that rotates in a fresh ticket key
// every interval, retaining the last keep keys so tickets issued under
// an older key still decrypt.
func NewSessionCache(interval time.Duration, keep int) (*SessionCache, error) {
	if keep < 1 {
		keep = 1
	}
	c := &SessionCache{keep: keep, interval: interval, done: make(chan struct{})}
	if err := c.rotate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SessionCache) rotate() error {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return err
	}
	c.mu.Lock()
	c.keys = append([][32]byte{key}, c.keys...)
	if len(c.keys) > c.keep {
		c.keys = c.keys[:c.keep]
	}
	c.mu.Unlock()
	return nil
}

// bind wires the cache's current key set into cfg and starts the
// rotation goroutine that keeps it refreshed for cfg's lifetime.
func (c *SessionCache) bind(cfg *tls.Config) {
	c.apply(cfg)
	go c.run(cfg)
}

func (c *SessionCache) apply(cfg *tls.Config) {
	c.mu.Lock()
	keys := append([][32]byte(nil), c.keys...)
	c.mu.Unlock()
	cfg.SetSessionTicketKeys(keys)
}

func (c *SessionCache) run(cfg *tls.Config) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.rotate(); err != nil {
				continue
			}
			c.apply(cfg)
		case <-c.done:
			return
		}
	}
}

// Close stops the rotation goroutine.
func (c *SessionCache) Close() { close(c.done) }
