package feed

import (
	"fmt"
)

// TransportError reports a failed connect, subscribe, read or heartbeat on
// the streaming connection. The supervisor retries these after a backoff;
// they never reach feed consumers.
type TransportError struct {
	Op  string // "dial", "subscribe", "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedFrameError reports an inbound frame that did not match the venue
// schema. The frame is dropped and the receive loop continues.
type MalformedFrameError struct {
	Frame []byte
	Err   error
}

func (e *MalformedFrameError) Error() string {
	const max = 256
	raw := e.Frame
	if len(raw) > max {
		raw = raw[:max]
	}
	return fmt.Sprintf("malformed frame %q: %v", raw, e.Err)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// BackfillError reports a failed historical request for [Start, End].
// It is fatal during the initial seed and logged during gap repair.
type BackfillError struct {
	Start, End int64
	Err        error
}

func (e *BackfillError) Error() string {
	return fmt.Sprintf("backfill [%d, %d]: %v", e.Start, e.End, e.Err)
}

func (e *BackfillError) Unwrap() error { return e.Err }
