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

package host

import (
	"time"
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/session"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// MainPollEvent polls the runtime on behalf of the main app and fans a
// copy of each event out to the overlay queues it concerns. Events
// scoped to the shared session are buffered for every overlay; the
// session handle is rewritten to each overlay's local handle only when
// the overlay dequeues it.
func (h *Host) MainPollEvent(eventData *xr.EventDataBuffer) xr.Result {
	res := h.downchain.PollEvent(h.instance, eventData)
	if res != xr.Success {
		return res
	}

	mainCtx := h.MainContext()

	if sess, scoped := xr.EventSession(eventData); scoped {
		if mainCtx == nil || sess != mainCtx.Session {
			// Scoped to a session this layer does not track; the main
			// app still sees it.
			return res
		}
		// Track main lifecycle so overlay FSMs can follow it.
		if eventData.Type == xr.TypeEventDataSessionStateChanged {
			change := (*xr.EventDataSessionStateChanged)(unsafe.Pointer(eventData))
			mainCtx.Mu.Lock()
			mainCtx.State.DoStateChange(change.State)
			mainCtx.Mu.Unlock()
		}
		if eventData.Type == xr.TypeEventDataSessionLossPending {
			mainCtx.Mu.Lock()
			mainCtx.State.Loss = session.LossPending
			mainCtx.Mu.Unlock()
		}
	}

	// Instance-scoped and shared-session events replay to every
	// overlay.
	for _, conn := range h.overlayConnections() {
		dup := *eventData
		dup.Next = nil
		conn.ctx.SaveEvent(&dup)
	}
	return res
}

func handlePollEvent(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.PollEventArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	if args.Event == nil {
		return xr.ErrorValidationFailure
	}
	ctx := conn.ctx
	if ctx == nil {
		if len(conn.residualEvents) > 0 {
			ev := conn.residualEvents[0]
			conn.residualEvents = conn.residualEvents[1:]
			wire.CopyEventToBuffer(unsafe.Pointer(ev), args.Event)
			return xr.Success
		}
		return xr.EventUnavailable
	}
	mainCtx := h.MainContext()

	// Derived lifecycle transitions surface before replayed runtime
	// events, so an overlay always observes a consistent ladder.
	if mainCtx != nil {
		ctx.Mu.Lock()
		mainCtx.Mu.Lock()
		next, pending := ctx.State.PendingStateChange(&mainCtx.State)
		mainCtx.Mu.Unlock()
		ctx.Mu.Unlock()
		if pending {
			wire.CopyEventToBuffer(unsafe.Pointer(&xr.EventDataSessionStateChanged{
				Type:    xr.TypeEventDataSessionStateChanged,
				Session: ctx.LocalSession,
				State:   next,
				Time:    xr.Time(time.Now().UnixNano()),
			}), args.Event)
			return xr.Success
		}
	}

	ev, ok := ctx.NextEvent()
	if !ok {
		return xr.EventUnavailable
	}
	// Saved events carry real handles; substitute the overlay's local
	// session handle before surfacing.
	xr.SetEventSession(ev, ctx.LocalSession)
	wire.CopyEventToBuffer(unsafe.Pointer(ev), args.Event)
	return xr.Success
}
