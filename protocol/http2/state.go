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

package http2

// StreamState is a node in the per-stream state machine, RFC 7540 §5.1.
type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved(local)"
	case StreamReservedRemote:
		return "reserved(remote)"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed(local)"
	case StreamHalfClosedRemote:
		return "half-closed(remote)"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream tracks one HTTP/2 stream's FSM state plus the flow-control
// and priority bookkeeping the scheduler needs. Transition is the only
// way callers should mutate state, so every edge goes through the same
// RFC 7540 §5.1 validation.
type Stream struct {
	ID    uint32
	state StreamState

	// SendWindow/RecvWindow are this stream's flow-control credit in
	// each direction, initialized to the peer's/our SETTINGS_INITIAL_
	// WINDOW_SIZE and adjusted by WINDOW_UPDATE frames and DATA sends.
	SendWindow int64
	RecvWindow int64

	Weight   uint8
	ParentID uint32
}

// NewStream returns an idle stream with the given initial flow-control
// windows.
func NewStream(id uint32, initialSendWindow, initialRecvWindow int64) *Stream {
	return &Stream{
		ID:         id,
		state:      StreamIdle,
		SendWindow: initialSendWindow,
		RecvWindow: initialRecvWindow,
		Weight:     16, // RFC 7540 §5.3.5 default weight
	}
}

// State returns the stream's current FSM state.
func (s *Stream) State() StreamState { return s.state }

// event names the triggering action for a transition, used only to
// pick the right edge in Transition's switch; it carries no wire
// representation of its own.
type event uint8

const (
	evRecvHeaders event = iota
	evRecvHeadersEndStream
	evSendHeaders
	evSendHeadersEndStream
	evRecvPushPromise
	evSendPushPromise
	evRecvData
	evSendData
	evRecvEndStream
	evSendEndStream
	evRecvRSTStream
	evSendRSTStream
	evRecvPriority
	evSendPriority
)

func isPriorityEvent(e event) bool { return e == evRecvPriority || e == evSendPriority }
func isRSTEvent(e event) bool      { return e == evRecvRSTStream || e == evSendRSTStream }

// transition applies e to the stream's FSM, returning the error to
// send as a stream-level RST_STREAM (H2_STREAM_CLOSED) or escalate to
// a connection-level GOAWAY (H2_PROTOCOL_ERROR) if the move is illegal
// for the current state.
func (s *Stream) transition(e event) error {
	if s.state == StreamClosed {
		// RFC 7540 §5.1: a closed stream still accepts PRIORITY, and
		// tolerates a short window of frames the peer sent before
		// learning of the close; everything else is a stream error.
		if isPriorityEvent(e) {
			return nil
		}
		return newH2Error(ErrCodeStreamClosed, "stream %d: frame on closed stream", s.ID)
	}

	switch s.state {
	case StreamIdle:
		switch e {
		case evRecvHeaders, evSendHeaders:
			s.state = StreamOpen
			return nil
		case evRecvHeadersEndStream:
			s.state = StreamHalfClosedRemote
			return nil
		case evSendHeadersEndStream:
			s.state = StreamHalfClosedLocal
			return nil
		case evRecvPushPromise:
			s.state = StreamReservedRemote
			return nil
		case evSendPushPromise:
			s.state = StreamReservedLocal
			return nil
		case evRecvPriority, evSendPriority:
			return nil
		default:
			return s.protocolError(e)
		}

	case StreamReservedLocal:
		switch e {
		case evSendHeaders, evSendHeadersEndStream:
			s.state = StreamHalfClosedRemote
			return nil
		case evRecvRSTStream, evSendRSTStream:
			s.state = StreamClosed
			return nil
		case evRecvPriority, evSendPriority:
			return nil
		default:
			return s.protocolError(e)
		}

	case StreamReservedRemote:
		switch e {
		case evRecvHeaders, evRecvHeadersEndStream:
			s.state = StreamHalfClosedLocal
			return nil
		case evRecvRSTStream, evSendRSTStream:
			s.state = StreamClosed
			return nil
		case evRecvPriority, evSendPriority:
			return nil
		default:
			return s.protocolError(e)
		}

	case StreamOpen:
		switch e {
		case evRecvEndStream:
			s.state = StreamHalfClosedRemote
			return nil
		case evSendEndStream:
			s.state = StreamHalfClosedLocal
			return nil
		case evRecvRSTStream, evSendRSTStream:
			s.state = StreamClosed
			return nil
		case evRecvData, evSendData, evRecvHeaders, evSendHeaders, evRecvPriority, evSendPriority:
			return nil
		default:
			return s.protocolError(e)
		}

	case StreamHalfClosedLocal:
		switch e {
		case evRecvEndStream, evRecvRSTStream, evSendRSTStream:
			s.state = StreamClosed
			return nil
		case evRecvData, evRecvHeaders, evRecvPriority, evSendPriority:
			return nil
		default:
			return s.protocolError(e)
		}

	case StreamHalfClosedRemote:
		switch e {
		case evSendEndStream, evRecvRSTStream, evSendRSTStream:
			s.state = StreamClosed
			return nil
		case evSendData, evSendHeaders, evRecvPriority, evSendPriority:
			return nil
		case evRecvData, evRecvHeaders:
			// A remote peer that already ended its side sending more
			// is a stream error, not a connection error.
			return newH2Error(ErrCodeStreamClosed, "stream %d: frame after END_STREAM", s.ID)
		default:
			return s.protocolError(e)
		}
	}
	return s.protocolError(e)
}

func (s *Stream) protocolError(e event) error {
	return newH2Error(ErrCodeProtocol, "stream %d: illegal event %d in state %s", s.ID, e, s.state)
}

// RecvHeaders applies a received HEADERS frame to the FSM.
func (s *Stream) RecvHeaders(endStream bool) error {
	if endStream {
		return s.transition(evRecvHeadersEndStream)
	}
	return s.transition(evRecvHeaders)
}

// SendHeaders applies a sent HEADERS frame to the FSM.
func (s *Stream) SendHeaders(endStream bool) error {
	if endStream {
		return s.transition(evSendHeadersEndStream)
	}
	return s.transition(evSendHeaders)
}

// RecvData applies a received DATA frame, transitioning to
// half-closed(remote)/closed if endStream is set.
func (s *Stream) RecvData(endStream bool) error {
	if err := s.transition(evRecvData); err != nil {
		return err
	}
	if endStream {
		return s.transition(evRecvEndStream)
	}
	return nil
}

// SendData applies a sent DATA frame, transitioning to
// half-closed(local)/closed if endStream is set.
func (s *Stream) SendData(endStream bool) error {
	if err := s.transition(evSendData); err != nil {
		return err
	}
	if endStream {
		return s.transition(evSendEndStream)
	}
	return nil
}

// RecvRSTStream forces the stream to closed from any reachable state.
func (s *Stream) RecvRSTStream() error { return s.transition(evRecvRSTStream) }

// SendRSTStream forces the stream to closed from any reachable state.
func (s *Stream) SendRSTStream() error { return s.transition(evSendRSTStream) }

// RecvPushPromise reserves the stream on the remote side (server push
// as observed by a client; unused on the server's own send path, which
// calls SendPushPromise instead).
func (s *Stream) RecvPushPromise() error { return s.transition(evRecvPushPromise) }

// SendPushPromise reserves the stream locally, the server-push path.
func (s *Stream) SendPushPromise() error { return s.transition(evSendPushPromise) }
