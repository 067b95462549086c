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

// Package transport carries RPCs between an overlay process and the
// main process: a per-overlay shared segment holding a connection
// mutex, request/response semaphores and the IPC arena, plus the
// negotiation rendezvous through which overlays find the main process.
package transport

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/google/uuid"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
)

// Well-known shared object names. The negotiation objects are fixed
// (single main-instance assumption); per-overlay RPC objects embed the
// overlay process id.
const (
	NegotiationSegmentName = "xr_extx_overlay_negotiation"
	rpcSegmentNameTemplate = "xr_extx_overlay_rpc_%d"
	texSegmentNameTemplate = "xr_extx_overlay_tex_%d_%d_%d"
)

// RPCSegmentName returns the RPC segment name for an overlay pid.
func RPCSegmentName(overlayPID uint32) string {
	return fmt.Sprintf(rpcSegmentNameTemplate, overlayPID)
}

// TextureSegmentName returns the shared-texture name for an overlay
// swapchain image.
func TextureSegmentName(overlayPID uint32, swapchain uint64, image int) string {
	return fmt.Sprintf(texSegmentNameTemplate, overlayPID, swapchain, image)
}

// DefaultArenaSize is the RPC arena capacity.
const DefaultArenaSize = 1 << 20

// rpcControl is the control block at the start of the RPC segment body;
// the arena follows it.
type rpcControl struct {
	mutex        uint32
	requestSema  uint32
	responseSema uint32
	_            uint32
}

const rpcControlSize = unsafe.Sizeof(rpcControl{})

// RPCChannels is one overlay connection's transport state: the shared
// segment, the connection mutex held by whichever side is mid-call, the
// two direction semaphores, the arena, and a termination watch on the
// peer process.
type RPCChannels struct {
	Seg          *ipc.Segment
	Mutex        *ipc.Mutex
	RequestSema  *ipc.Semaphore
	ResponseSema *ipc.Semaphore
	Arena        *ipc.Arena
	Peer         *ipc.PeerWatch
	ConnID       string
}

func channelsFromSegment(seg *ipc.Segment, peerPID int) (*RPCChannels, error) {
	body := seg.Body()
	if len(body) < int(rpcControlSize)+ipc.ArenaHeaderSize {
		seg.Close()
		return nil, fmt.Errorf("rpc segment too small: %d bytes", len(body))
	}
	ctl := (*rpcControl)(seg.BodyPointer(0))
	peer, err := ipc.WatchPeer(peerPID)
	if err != nil {
		seg.Close()
		return nil, fmt.Errorf("watch peer %d: %w", peerPID, err)
	}
	return &RPCChannels{
		Seg:          seg,
		Mutex:        ipc.MutexAt(unsafe.Pointer(&ctl.mutex)),
		RequestSema:  ipc.SemaphoreAt(unsafe.Pointer(&ctl.requestSema)),
		ResponseSema: ipc.SemaphoreAt(unsafe.Pointer(&ctl.responseSema)),
		Arena:        ipc.ArenaAt(body[rpcControlSize:]),
		Peer:         peer,
		ConnID:       uuid.NewString(),
	}, nil
}

// CreateRPCChannels creates the per-overlay RPC segment. The overlay
// side calls this before announcing itself to the negotiator, so the
// main side never races segment creation.
func CreateRPCChannels(mainPID int, arenaSize int) (*RPCChannels, error) {
	if arenaSize < ipc.ArenaHeaderSize {
		arenaSize = DefaultArenaSize
	}
	name := RPCSegmentName(uint32(os.Getpid()))
	// A previous overlay instance with our pid cannot exist; scavenge
	// any stale file left by a crashed one.
	ipc.RemoveSegment(name)
	seg, err := ipc.CreateSegment(name, uint64(rpcControlSize)+uint64(arenaSize))
	if err != nil {
		return nil, fmt.Errorf("create rpc segment: %w", err)
	}
	seg.H.SetOverlayPID(uint32(os.Getpid()))
	seg.H.SetMainPID(uint32(mainPID))
	seg.H.SetOverlayReady(true)
	return channelsFromSegment(seg, mainPID)
}

// OpenRPCChannels opens an overlay's RPC segment from the main side.
func OpenRPCChannels(overlayPID uint32) (*RPCChannels, error) {
	seg, err := ipc.OpenSegment(RPCSegmentName(overlayPID))
	if err != nil {
		return nil, fmt.Errorf("open rpc segment: %w", err)
	}
	seg.H.SetMainReady(true)
	return channelsFromSegment(seg, int(overlayPID))
}

// FinishRequest publishes a serialized request to the main side.
func (c *RPCChannels) FinishRequest() {
	c.RequestSema.Post()
}

// FinishResponse publishes a completed response to the overlay side.
func (c *RPCChannels) FinishResponse() {
	c.ResponseSema.Post()
}

// WaitForRequest blocks the main servicer until a request is ready or
// the overlay process terminates or closes the connection.
func (c *RPCChannels) WaitForRequest() error {
	if c.Seg.H.Closed() {
		return ipc.ErrSegmentClosed
	}
	if err := ipc.WaitSemaphoreOrPeer(c.RequestSema, c.Peer); err != nil {
		return err
	}
	if c.Seg.H.Closed() {
		return ipc.ErrSegmentClosed
	}
	return nil
}

// WaitForResponse blocks the overlay caller until the response is ready
// or the main process terminates or closes the connection.
func (c *RPCChannels) WaitForResponse() error {
	if c.Seg.H.Closed() {
		return ipc.ErrSegmentClosed
	}
	if err := ipc.WaitSemaphoreOrPeer(c.ResponseSema, c.Peer); err != nil {
		return err
	}
	if c.Seg.H.Closed() {
		return ipc.ErrSegmentClosed
	}
	return nil
}

// Shutdown marks the connection closed and wakes both sides without
// unmapping anything, so a servicer still inside a wait can observe the
// closure safely. The side that owns the mapping calls Close afterwards.
func (c *RPCChannels) Shutdown() {
	if c.Seg.H != nil {
		c.Seg.H.SetClosed(true)
	}
	c.RequestSema.Post()
	c.ResponseSema.Post()
}

// Close marks the connection closed and releases local resources.
func (c *RPCChannels) Close() error {
	if c.Seg.H != nil {
		c.Seg.H.SetClosed(true)
	}
	// Wake anything blocked on either direction so it observes the
	// closed flag or peer state promptly.
	c.RequestSema.Post()
	c.ResponseSema.Post()
	c.Peer.Close()
	return c.Seg.Close()
}
