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

package session

import (
	"sync"
	"time"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// Defaults for the bounded per-overlay buffers.
const (
	MaxEventsSavedForOverlay    = 16
	MaxOverlayCompositionLayers = 16
)

// overlayWaitFrameBound caps how long an overlay wait-frame blocks for
// a fresh main frame before it is handed the most recent one anyway.
// The main app may legitimately stall its frame loop; overlays must not
// hang forever on it.
const overlayWaitFrameBound = 10 * time.Second

// MainContext is the state the layer keeps for the main session: the
// real session handle, its lifecycle tracker, the frame gate overlays
// synchronize on, and destroy-deferred swapchains.
type MainContext struct {
	// Mu serializes every runtime call touching the real session,
	// whether it originates from the main app or a servicer thread.
	Mu sync.Mutex

	Session xr.Session // the real runtime session
	State   StateTracker

	HasCalledWaitFrame bool

	frameMu    sync.Mutex
	frameCond  *sync.Cond
	frameSeq   uint64
	frameState xr.FrameState

	deferMu          sync.Mutex
	deferredDestroys []xr.Swapchain
}

// NewMainContext tracks a freshly created real session.
func NewMainContext(real xr.Session) *MainContext {
	ctx := &MainContext{Session: real}
	ctx.frameCond = sync.NewCond(&ctx.frameMu)
	return ctx
}

// RecordWaitFrame publishes a main wait-frame result to the gate and
// wakes every overlay blocked on it.
func (c *MainContext) RecordWaitFrame(state *xr.FrameState) {
	c.frameMu.Lock()
	c.frameSeq++
	c.frameState = *state
	c.frameState.Next = nil
	c.frameMu.Unlock()
	c.frameCond.Broadcast()
	c.HasCalledWaitFrame = true
}

// WaitForFrame blocks until the main has completed a wait-frame newer
// than lastSeq, then returns a copy of the newest frame state and its
// sequence number. Relaxed callers accept the current frame state even
// if they have seen it before, as long as one exists. The wait is
// bounded; on expiry the newest available state is returned.
func (c *MainContext) WaitForFrame(lastSeq uint64, relaxed bool) (xr.FrameState, uint64) {
	ready := func() bool {
		if relaxed {
			return c.frameSeq > 0
		}
		return c.frameSeq > lastSeq
	}

	timeout := time.AfterFunc(overlayWaitFrameBound, func() {
		c.frameCond.Broadcast()
	})
	defer timeout.Stop()
	deadline := time.Now().Add(overlayWaitFrameBound)

	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	for !ready() && time.Now().Before(deadline) {
		c.frameCond.Wait()
	}
	return c.frameState, c.frameSeq
}

// FrameSeq returns the number of main wait-frames recorded so far.
func (c *MainContext) FrameSeq() uint64 {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	return c.frameSeq
}

// DeferDestroy parks a swapchain whose destruction must wait until the
// next successful main end-frame, because a cached overlay layer still
// references it.
func (c *MainContext) DeferDestroy(sc xr.Swapchain) {
	c.deferMu.Lock()
	c.deferredDestroys = append(c.deferredDestroys, sc)
	c.deferMu.Unlock()
}

// TakeDeferredDestroys drains the deferred-destroy list.
func (c *MainContext) TakeDeferredDestroys() []xr.Swapchain {
	c.deferMu.Lock()
	out := c.deferredDestroys
	c.deferredDestroys = nil
	c.deferMu.Unlock()
	return out
}

// LayerSnapshot is one overlay's cached end-frame submission: a
// heap-copied layer chain with handles already restored to real ones,
// ready for splicing into the next main end-frame.
type LayerSnapshot struct {
	Chain *wire.HeapChain
}

// OverlayContext is the per-overlay session state the main process
// keeps: placement, frame pacing mode, lifecycle tracker, the bounded
// event queue, the cached composition layers, and the child handles
// owned by the overlay session.
type OverlayContext struct {
	Mu sync.Mutex

	LocalSession xr.Session // the façade handle handed to the overlay

	Placement          int32
	RelaxedDisplayTime bool

	State        StateTracker
	LastFrameSeq uint64

	events []*xr.EventDataBuffer

	layers []*LayerSnapshot

	LocalSpaces     map[xr.Space]struct{}
	LocalSwapchains map[xr.Swapchain]struct{}
	LocalActions    map[xr.Action]struct{}
	LocalActionSets map[xr.ActionSet]struct{}
}

// NewOverlayContext builds the context for a freshly created overlay
// session.
func NewOverlayContext(local xr.Session, placement int32, relaxed bool) *OverlayContext {
	return &OverlayContext{
		LocalSession:       local,
		Placement:          placement,
		RelaxedDisplayTime: relaxed,
		LocalSpaces:        make(map[xr.Space]struct{}),
		LocalSwapchains:    make(map[xr.Swapchain]struct{}),
		LocalActions:       make(map[xr.Action]struct{}),
		LocalActionSets:    make(map[xr.ActionSet]struct{}),
	}
}

// SaveEvent enqueues an event for this overlay. The queue is bounded;
// on overflow the oldest non-critical event is dropped, while
// state-changed and loss-pending events are preserved.
func (o *OverlayContext) SaveEvent(ev *xr.EventDataBuffer) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	if len(o.events) >= MaxEventsSavedForOverlay {
		dropped := false
		for i, old := range o.events {
			if !xr.CriticalEvent(old) {
				o.events = append(o.events[:i], o.events[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			// Every queued event is critical; drop the new one unless
			// it is critical too, in which case the oldest must go.
			if !xr.CriticalEvent(ev) {
				return
			}
			o.events = o.events[1:]
		}
	}
	o.events = append(o.events, ev)
}

// NextEvent dequeues the oldest saved event, if any.
func (o *OverlayContext) NextEvent() (*xr.EventDataBuffer, bool) {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	if len(o.events) == 0 {
		return nil, false
	}
	ev := o.events[0]
	o.events = o.events[1:]
	return ev, true
}

// SetLayers replaces the cached composition layers for this overlay.
func (o *OverlayContext) SetLayers(layers []*LayerSnapshot) {
	o.Mu.Lock()
	o.layers = layers
	o.Mu.Unlock()
}

// Layers returns the cached composition layers.
func (o *OverlayContext) Layers() []*LayerSnapshot {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	return o.layers
}

// ClearLayers discards the cached composition layers.
func (o *OverlayContext) ClearLayers() {
	o.SetLayers(nil)
}
