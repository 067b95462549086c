package ipc

import "errors"

// ErrFutexTimeout is returned by timed futex waits when the wait times out.
var ErrFutexTimeout = errors.New("futex timeout")

// ErrArenaFull is returned when a bump allocation or fixup registration
// exceeds the arena's fixed capacity.
var ErrArenaFull = errors.New("ipc arena full")

// ErrPeerTerminated is returned by waits that observed the peer process
// exit before the awaited condition became true.
var ErrPeerTerminated = errors.New("peer process terminated")

// ErrSegmentClosed is returned when an operation runs against a segment
// whose owner marked it closed.
var ErrSegmentClosed = errors.New("segment closed")
