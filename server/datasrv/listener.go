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

package datasrv

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/chenbk85/corehttpd/filecache"
	"github.com/chenbk85/corehttpd/internal/conn"
	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/internal/rescue"
	"github.com/chenbk85/corehttpd/internal/timingwheel"
	"github.com/chenbk85/corehttpd/logger"
	"github.com/chenbk85/corehttpd/tlsengine"
)

func newError(format string, args ...any) error {
	format = "datasrv: " + format
	return errors.Errorf(format, args...)
}

// Server owns one data-plane listener: the accept loop, the bounded
// per-connection worker slots, the shared file cache and buffer pool,
// and (when configured) the TLS front-end.
type Server struct {
	cfg     Config
	handler *FileHandler

	cache   *filecache.Cache
	bufPool *iobuf.Pool
	connPool *conn.Pool
	wheel   *timingwheel.Wheel
	sem     *semaphore.Weighted

	tlsConfig    *tls.Config
	sessionCache *tlsengine.SessionCache

	ln net.Listener

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New builds a Server from cfg, constructing its file cache, buffer
// pool, connection registry, timing wheel, and (if cfg.TLS is set)
// its ALPN-aware TLS front-end.
func New(cfg Config) (*Server, error) {
	if cfg.BufferWidth <= 0 {
		cfg.BufferWidth = 4096
	}
	if cfg.MaxHeaders <= 0 {
		cfg.MaxHeaders = 100
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 10000
	}

	s := &Server{
		cfg:      cfg,
		cache:    filecache.New(cfg.DocumentRoot),
		bufPool:  iobuf.NewPool(9, cfg.BufferWidth), // 9 bytes headroom for HTTP/2 frame back-fill
		connPool: conn.NewPool(),
		wheel:    timingwheel.New(cfg.TimeWait),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}
	s.handler = NewFileHandler(s.cache, cfg.BufferWidth)

	if cfg.TLS != nil {
		sc, err := tlsengine.NewSessionCache(defaultTicketRotation, defaultTicketKeep)
		if err != nil {
			return nil, errors.Wrap(err, "datasrv: build session cache")
		}
		tc, err := tlsengine.NewConfig(*cfg.TLS, sc)
		if err != nil {
			sc.Close()
			return nil, errors.Wrap(err, "datasrv: build TLS config")
		}
		s.sessionCache = sc
		s.tlsConfig = tc
	}

	return s, nil
}

// ListenAndServe binds cfg.Address and accepts connections until ctx
// is cancelled or Close is called. Each accepted connection is
// dispatched to its own goroutine, bounded by cfg.MaxConnections and
// guarded by internal/rescue's panic handler so one malformed peer
// never takes the listener down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrap(err, "datasrv: listen")
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return nil
			}
			return errors.Wrap(err, "datasrv: accept")
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			_ = raw.Close()
			continue
		}

		s.wg.Add(1)
		go s.serve(raw)
	}
}

func (s *Server) serve(raw net.Conn) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer rescue.HandleCrash()

	c := conn.New(raw, s.bufPool)
	c.SetTimeWait(s.wheel, s.cfg.TimeWait)
	s.connPool.Track(c)

	sess := &session{server: s, conn: c}
	if err := sess.run(); err != nil {
		logger.Debugf("datasrv: connection ended: %v", err)
	}
}

// Close stops accepting new connections, actively closes every
// tracked connection, and tears down the TLS session cache and timing
// wheel. Errors from each of those independent shutdown steps are
// aggregated rather than the first one winning, since a caller
// deciding whether shutdown was clean needs to see all of them.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	var result *multierror.Error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.connPool.CloseAll()
	s.wg.Wait()

	s.wheel.Close()
	if s.sessionCache != nil {
		s.sessionCache.Close()
	}

	return result.ErrorOrNil()
}
