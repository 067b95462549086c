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

package transport

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
)

// Negotiation status values published in shared memory.
const (
	NegotiationSuccess uint32 = iota
	NegotiationDifferentBinaryVersion
)

// Acknowledgement values the main side publishes once it has acted on
// an overlay's announcement.
const (
	ackPending uint32 = iota
	ackAccepted
	ackRejected
)

const (
	// negotiationWait bounds each individual wait in the rendezvous so
	// a stop request or peer exit is observed promptly.
	negotiationWait = 2 * time.Second

	// connectRetryInterval paces an overlay's attempts to find the
	// negotiation segment while no main process exists yet.
	connectRetryInterval = 250 * time.Millisecond
)

// ErrNegotiationTimeout is returned when no main process appeared
// within the caller's deadline.
var ErrNegotiationTimeout = errors.New("negotiation timed out waiting for main process")

// ErrVersionRejected is returned when the main process runs a different
// layer binary version.
var ErrVersionRejected = errors.New("negotiation rejected: different layer binary version")

// negotiationControl is the futex block at the start of the negotiation
// segment body; NegotiationParams follows it.
type negotiationControl struct {
	mutex       uint32
	overlayWait uint32
	mainWait    uint32
	stop        uint32
	ack         uint32
	_           uint32
}

const negotiationControlSize = unsafe.Sizeof(negotiationControl{})

// NegotiationParams is the record exchanged through negotiation shmem.
type NegotiationParams struct {
	MainPID        uint32
	OverlayPID     uint32
	MainVersion    uint32
	OverlayVersion uint32
	Status         uint32
	_              uint32
}

// Negotiator is the main-side rendezvous singleton. It owns the
// negotiation segment and admits one overlay at a time.
type Negotiator struct {
	seg     *ipc.Segment
	ctl     *negotiationControl
	params  *NegotiationParams
	mutex   *ipc.Mutex
	overlay *ipc.Semaphore
	main    *ipc.Semaphore
	version uint32
	stopped atomic.Bool
}

// CreateNegotiation creates the negotiation channels and publishes the
// main process id and layer version. Fails if another main process
// already owns the rendezvous.
func CreateNegotiation(version uint32) (*Negotiator, error) {
	seg, err := ipc.CreateSegment(NegotiationSegmentName,
		uint64(negotiationControlSize)+uint64(unsafe.Sizeof(NegotiationParams{})))
	if err != nil {
		return nil, fmt.Errorf("create negotiation segment (is another main app running?): %w", err)
	}
	n := &Negotiator{
		seg:     seg,
		ctl:     (*negotiationControl)(seg.BodyPointer(0)),
		params:  (*NegotiationParams)(seg.BodyPointer(negotiationControlSize)),
		version: version,
	}
	n.mutex = ipc.MutexAt(unsafe.Pointer(&n.ctl.mutex))
	n.overlay = ipc.SemaphoreAt(unsafe.Pointer(&n.ctl.overlayWait))
	n.main = ipc.SemaphoreAt(unsafe.Pointer(&n.ctl.mainWait))
	n.params.MainPID = uint32(os.Getpid())
	n.params.MainVersion = version
	seg.H.SetMainPID(uint32(os.Getpid()))
	seg.H.SetMainReady(true)
	return n, nil
}

// Run loops admitting overlays until Stop is called. For each accepted
// overlay it opens the per-overlay RPC channels and hands them to
// accept, which must not block the loop for long (it spawns the
// servicer and returns).
func (n *Negotiator) Run(accept func(ch *RPCChannels, overlayPID uint32)) {
	for {
		// Signal that one overlay app may attempt to connect.
		n.overlay.Post()

		for {
			if n.stopped.Load() {
				return
			}
			err := n.main.Wait(negotiationWait)
			if err == nil {
				break
			}
			if err != ipc.ErrFutexTimeout {
				glog.Errorf("negotiator: wait failed: %v", err)
				return
			}
		}
		if n.stopped.Load() {
			return
		}

		if n.params.OverlayVersion != n.version {
			glog.Warningf("negotiator: overlay layer version %#x differs from main %#x, connection rejected",
				n.params.OverlayVersion, n.version)
			n.params.Status = NegotiationDifferentBinaryVersion
			atomic.StoreUint32(&n.ctl.ack, ackRejected)
			ipc.WakeWord(&n.ctl.ack)
			continue
		}

		overlayPID := n.params.OverlayPID
		ch, err := OpenRPCChannels(overlayPID)
		if err != nil {
			glog.Warningf("negotiator: couldn't open RPC channels to overlay %d, connection rejected: %v", overlayPID, err)
			atomic.StoreUint32(&n.ctl.ack, ackRejected)
			ipc.WakeWord(&n.ctl.ack)
			continue
		}

		n.params.Status = NegotiationSuccess
		atomic.StoreUint32(&n.ctl.ack, ackAccepted)
		ipc.WakeWord(&n.ctl.ack)

		glog.V(1).Infof("negotiator: accepted overlay pid=%d conn=%s", overlayPID, ch.ConnID)
		accept(ch, overlayPID)
	}
}

// Stop makes Run return. Overlays attempting to connect afterwards time
// out. The segment stays mapped until Close, since Run may still be
// waiting on words inside it.
func (n *Negotiator) Stop() {
	if n.stopped.Swap(true) {
		return
	}
	atomic.StoreUint32(&n.ctl.stop, 1)
	// Wake the run loop out of its semaphore wait.
	n.main.Post()
}

// Close tears the rendezvous down. Call only after Run has returned.
func (n *Negotiator) Close() error {
	return n.seg.Close()
}

// ConnectResult is what an overlay learns from a successful rendezvous.
type ConnectResult struct {
	Channels *RPCChannels
	MainPID  uint32
}

// Connect performs the overlay side of the rendezvous: find the
// negotiation segment, take the negotiation mutex, wait for the
// one-overlay-may-attempt signal, announce pid and version, create the
// RPC segment, and wait for acceptance. The whole dance is bounded by
// timeout.
func Connect(version uint32, arenaSize int, timeout time.Duration) (*ConnectResult, error) {
	deadline := time.Now().Add(timeout)

	var seg *ipc.Segment
	for {
		var err error
		seg, err = ipc.OpenSegment(NegotiationSegmentName)
		if err == nil && seg.H.MainReady() {
			break
		}
		if err == nil {
			seg.Close()
		}
		if time.Now().After(deadline) {
			return nil, ErrNegotiationTimeout
		}
		time.Sleep(connectRetryInterval)
	}

	ctl := (*negotiationControl)(seg.BodyPointer(0))
	params := (*NegotiationParams)(seg.BodyPointer(negotiationControlSize))
	mutex := ipc.MutexAt(unsafe.Pointer(&ctl.mutex))
	overlayWait := ipc.SemaphoreAt(unsafe.Pointer(&ctl.overlayWait))
	mainWait := ipc.SemaphoreAt(unsafe.Pointer(&ctl.mainWait))

	mutex.Lock()
	defer seg.Close()
	defer mutex.Unlock()

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, ErrNegotiationTimeout
	}
	if err := overlayWait.Wait(remaining); err != nil {
		return nil, ErrNegotiationTimeout
	}

	mainPID := params.MainPID
	params.OverlayPID = uint32(os.Getpid())
	params.OverlayVersion = version
	params.Status = NegotiationSuccess
	atomic.StoreUint32(&ctl.ack, ackPending)

	// Create our RPC segment before announcing so the main side's open
	// cannot race the creation.
	ch, err := CreateRPCChannels(int(mainPID), arenaSize)
	if err != nil {
		return nil, fmt.Errorf("create rpc channels: %w", err)
	}

	mainWait.Post()

	for atomic.LoadUint32(&ctl.ack) == ackPending {
		if time.Now().After(deadline) {
			ch.Close()
			return nil, ErrNegotiationTimeout
		}
		ipc.WaitWord(&ctl.ack, ackPending, negotiationWait)
	}

	if atomic.LoadUint32(&ctl.ack) != ackAccepted {
		ch.Close()
		if params.Status == NegotiationDifferentBinaryVersion {
			return nil, ErrVersionRejected
		}
		return nil, fmt.Errorf("negotiation rejected by main process")
	}

	glog.V(1).Infof("negotiation with main pid=%d succeeded", mainPID)
	return &ConnectResult{Channels: ch, MainPID: mainPID}, nil
}
