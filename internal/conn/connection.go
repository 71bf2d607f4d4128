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

// Package conn implements the connection lifecycle described in
// spec.md §4.A: one accepted transport endpoint, a receive buffer, a
// send buffer, and the shutdown discipline distinguishing an
// actively-closed connection (which waits out TIME-WAIT before its
// Connection object returns to the pool) from a gracefully-closed one
// (peer shut its send side; no wait is needed).
//
// Grounded on connstream/tcp.go's tcpStream lifecycle: an
// atomic "closed" flag, an activeAt timestamp, and FIN-triggers-close
// semantics, generalized from a virtual TCP-reassembly stream to a
// real net.Conn wrapper.
package conn

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/chenbk85/corehttpd/internal/iobuf"
	"github.com/chenbk85/corehttpd/internal/timingwheel"
)

func newError(format string, args ...any) error {
	format = "conn: " + format
	return errors.Errorf(format, args...)
}

// ErrClosed is returned by operations attempted on a Connection whose
// socket has already been released.
var ErrClosed = newError("connection closed")

// State is the connection's shutdown-discipline state.
type State uint8

const (
	StateActive State = iota
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

// halfCloser is implemented by *net.TCPConn; asserted at runtime so
// Connection also accepts non-TCP net.Conn implementations such as the
// TLS wrapper in tlsengine, which manages its own shutdown sequencing.
type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Connection owns one accepted transport endpoint, a receive buffer,
// a send buffer, and the shutdown/cancellation bookkeeping described
// by spec.md §4.A's "four completion slots" (here: a recv goroutine,
// a send goroutine, and the disconnect/cancel paths both funnel
// through Close/forceClose).
type Connection struct {
	raw  net.Conn
	pool *iobuf.Pool

	recvBuf *iobuf.Buffer
	sendBuf *iobuf.Buffer

	state      atomic.Int32
	activeAt   atomic.Int64 // unix nanos
	cancelled  atomic.Bool
	reusedOnce atomic.Bool

	onReuse func(c *Connection)

	wheel    *timingwheel.Wheel
	timeWait time.Duration
}

// SetTimeWait installs the timing wheel and interval used to delay an
// actively-closed connection's reuse hook. If unset, ActiveClose fires
// the reuse hook immediately, matching GracefulClose.
func (c *Connection) SetTimeWait(wheel *timingwheel.Wheel, d time.Duration) {
	c.wheel = wheel
	c.timeWait = d
}

// New wraps an accepted net.Conn, allocating its recv/send buffers
// from pool.
func New(raw net.Conn, pool *iobuf.Pool) *Connection {
	c := &Connection{
		raw:     raw,
		pool:    pool,
		recvBuf: pool.Get(),
		sendBuf: pool.Get(),
	}
	c.touch()
	return c
}

// Raw returns the underlying transport endpoint.
func (c *Connection) Raw() net.Conn { return c.raw }

// RecvBuffer returns the connection's receive buffer.
func (c *Connection) RecvBuffer() *iobuf.Buffer { return c.recvBuf }

// SendBuffer returns the connection's send buffer.
func (c *Connection) SendBuffer() *iobuf.Buffer { return c.sendBuf }

// State returns the current shutdown-discipline state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) touch() { c.activeAt.Store(time.Now().UnixNano()) }

// ActiveAt returns the time of the connection's last observed I/O.
func (c *Connection) ActiveAt() time.Time {
	return time.Unix(0, c.activeAt.Load())
}

// Recv reads into the receive buffer's writable region, growing it if
// necessary, and returns the number of bytes read. A zero-length read
// with a nil error signals the peer performed an orderly (FIN) close
// and GracefulClose should be invoked by the caller.
func (c *Connection) Recv(want int) (int, error) {
	if c.State() == StateClosed {
		return 0, ErrClosed
	}
	c.recvBuf.MakeWriteableSpace(want)
	n, err := c.raw.Read(c.recvBuf.WriteSlice()[:want])
	if n > 0 {
		c.recvBuf.AdvanceWrite(n)
		c.touch()
	}
	if err != nil {
		if isReset(err) {
			c.forceClose()
			return n, newError("recv reset: %v", err)
		}
		return n, err
	}
	return n, nil
}

// Send drains the send buffer's readable region onto the wire,
// reposting as many writes as the kernel requires (the teacher's
// "if the kernel accepts fewer bytes than offered, advance
// accordingly and post again" rule from spec.md §4.A).
func (c *Connection) Send() (int, error) {
	if c.State() == StateClosed {
		return 0, ErrClosed
	}
	total := 0
	for c.sendBuf.Readable() > 0 {
		n, err := c.raw.Write(c.sendBuf.ReadSlice())
		if n > 0 {
			c.sendBuf.Advance(n)
			total += n
			c.touch()
		}
		if err != nil {
			if isReset(err) {
				c.forceClose()
				return total, newError("send reset: %v", err)
			}
			return total, err
		}
	}
	return total, nil
}

// GracefulClose implements the peer-initiated shutdown path: shutdown
// RECV immediately, let any pending sends complete, then shutdown SEND
// and disconnect with no TIME-WAIT wait.
func (c *Connection) GracefulClose() error {
	if !c.state.CompareAndSwap(int32(StateActive), int32(StateHalfClosedRemote)) &&
		!c.state.CompareAndSwap(int32(StateHalfClosedLocal), int32(StateClosed)) {
		return nil
	}
	if hc, ok := c.raw.(halfCloser); ok {
		_ = hc.CloseRead()
	}
	// Pending sends are expected to have been drained by the caller
	// (the handler posts sends from the receive-completion handler per
	// spec.md §5's ordering rule); disconnect immediately afterwards.
	return c.finalize(false)
}

// ActiveClose implements the local-initiated shutdown path: drain the
// send buffer, shutdown SEND, disconnect, and defer the Connection's
// return to its pool until the TIME-WAIT interval elapses.
func (c *Connection) ActiveClose() error {
	if !c.state.CompareAndSwap(int32(StateActive), int32(StateHalfClosedLocal)) &&
		!c.state.CompareAndSwap(int32(StateHalfClosedRemote), int32(StateClosed)) {
		return nil
	}
	if _, err := c.Send(); err != nil && !errors.Is(err, ErrClosed) {
		// Already reset; forceClose has run.
		return nil
	}
	if hc, ok := c.raw.(halfCloser); ok {
		_ = hc.CloseWrite()
	}
	return c.finalize(true)
}

// forceClose handles the connection-reset failure model: transition
// directly to active close and cancel every pending buffer exactly
// once. Safe to call from Recv or Send's error path.
func (c *Connection) forceClose() {
	if c.cancelled.CompareAndSwap(false, true) {
		c.recvBuf.Cancel()
		c.sendBuf.Cancel()
	}
	c.state.Store(int32(StateClosed))
	_ = c.raw.Close()
}

// finalize releases the socket. timeWait is true for actively-closed
// connections, which must wait out TIME-WAIT before OnReuse fires;
// gracefully-closed connections reuse immediately.
func (c *Connection) finalize(timeWait bool) error {
	c.state.Store(int32(StateClosed))
	err := c.raw.Close()
	c.pool.Put(c.recvBuf)
	c.pool.Put(c.sendBuf)
	if c.onReuse == nil {
		return err
	}
	if !timeWait || c.wheel == nil {
		if !c.reusedOnce.Swap(true) {
			c.onReuse(c)
		}
		return err
	}
	c.wheel.Schedule(c.timeWait, c.OnReuseNow)
	return err
}

// OnReuseNow invokes the reuse callback registered via SetReuseHook.
// Called by the timing wheel once TIME-WAIT has elapsed for an
// actively-closed connection.
func (c *Connection) OnReuseNow() {
	if c.onReuse != nil && !c.reusedOnce.Swap(true) {
		c.onReuse(c)
	}
}

// SetReuseHook installs the callback invoked when this connection's
// socket slot becomes eligible for reuse (immediately for graceful
// closes, after TIME-WAIT for active closes).
func (c *Connection) SetReuseHook(f func(c *Connection)) {
	c.onReuse = f
}

func isReset(err error) bool {
	return errors.Is(err, net.ErrClosed) || isConnReset(err)
}
