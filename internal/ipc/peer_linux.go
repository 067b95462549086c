//go:build linux && (amd64 || arm64)

/*
 *
 * Copyright 2025 The OpenXR-OverlayLayer Authors.
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
 *
 */

package ipc

import (
	"time"

	"golang.org/x/sys/unix"
)

// PeerWatch observes another process for termination. It holds a pidfd
// when the kernel provides one, falling back to signal-0 liveness
// probes otherwise. A watch outlives the peer: Terminated keeps
// reporting true after the process exits.
type PeerWatch struct {
	pid int
	fd  int
}

// WatchPeer opens a termination watch on pid.
func WatchPeer(pid int) (*PeerWatch, error) {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		// Pre-pidfd kernel; probe with kill(pid, 0) instead.
		fd = -1
	}
	return &PeerWatch{pid: pid, fd: fd}, nil
}

// Terminated reports whether the watched process has exited.
func (w *PeerWatch) Terminated() bool {
	if w.fd >= 0 {
		fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		if err != nil {
			return false
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0
	}
	err := unix.Kill(w.pid, 0)
	return err == unix.ESRCH
}

// Close releases the watch.
func (w *PeerWatch) Close() {
	if w.fd >= 0 {
		unix.Close(w.fd)
		w.fd = -1
	}
}

// waitSlice bounds each individual wait so peer termination is observed
// within a small bounded time, mirroring the short polling interval the
// request/response waits are specified with.
const waitSlice = 500 * time.Millisecond

// WaitSemaphoreOrPeer blocks until the semaphore can be taken or the
// watched peer terminates, whichever happens first. Returns
// ErrPeerTerminated in the latter case.
func WaitSemaphoreOrPeer(s *Semaphore, w *PeerWatch) error {
	for {
		if s.TryWait() {
			return nil
		}
		if w.Terminated() {
			return ErrPeerTerminated
		}
		if err := s.Wait(waitSlice); err == nil {
			return nil
		} else if err != ErrFutexTimeout {
			return err
		}
	}
}
