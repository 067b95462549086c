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

	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/registry"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/session"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// findSessionChainNodes pulls the overlay create info and graphics
// binding out of a session create chain.
func findSessionChainNodes(ci *xr.SessionCreateInfo) (*xr.SessionCreateInfoOverlay, *xr.GraphicsBindingSharedTexture) {
	var cio *xr.SessionCreateInfoOverlay
	var binding *xr.GraphicsBindingSharedTexture
	for p := ci.Next; p != nil; p = (*xr.BaseInStructure)(p).Next {
		switch (*xr.BaseInStructure)(p).Type {
		case xr.TypeSessionCreateInfoOverlay:
			cio = (*xr.SessionCreateInfoOverlay)(p)
		case xr.TypeGraphicsBindingSharedTexture:
			binding = (*xr.GraphicsBindingSharedTexture)(p)
		}
	}
	return cio, binding
}

func handleCreateSession(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateSessionArgs](a)
	if args.Instance != h.instance || args.CreateInfo == nil || args.Session == nil {
		return xr.ErrorHandleInvalid
	}
	if conn.ctx != nil {
		// One overlay session per connection.
		return xr.ErrorLimitReached
	}

	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorRuntimeFailure
	}

	cio, binding := findSessionChainNodes(args.CreateInfo)
	if binding == nil {
		// Only the shared-texture-capable binding can be bridged.
		return xr.ErrorGraphicsDeviceInvalid
	}

	placement := int32(0)
	relaxed := false
	if cio != nil {
		placement = cio.SessionLayersPlacement
		relaxed = cio.CreateFlags&xr.OverlaySessionRelaxedDisplayTimeBit != 0
	}

	local := xr.Session(h.reg.Insert(&registry.Info{
		Type: registry.ObjectSession,
		Real: uint64(mainCtx.Session),
	}))
	conn.ctx = session.NewOverlayContext(local, placement, relaxed)
	*args.Session = local

	glog.V(1).Infof("[conn %s] overlay session %#x created (placement=%d relaxed=%v)",
		conn.ch.ConnID, local, placement, relaxed)
	return xr.Success
}

func handleDestroySession(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.SessionArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}

	// The overlay session is going away while the main session
	// persists: buffer a loss-pending event and then the exiting state
	// change, in case the overlay polls before disconnecting.
	now := xr.Time(time.Now().UnixNano())
	loss := &xr.EventDataBuffer{}
	wire.CopyEventToBuffer(unsafe.Pointer(&xr.EventDataSessionLossPending{
		Type:     xr.TypeEventDataSessionLossPending,
		Session:  args.Session,
		LossTime: now,
	}), loss)
	conn.ctx.SaveEvent(loss)

	exiting := &xr.EventDataBuffer{}
	wire.CopyEventToBuffer(unsafe.Pointer(&xr.EventDataSessionStateChanged{
		Type:    xr.TypeEventDataSessionStateChanged,
		Session: args.Session,
		State:   xr.SessionStateExiting,
		Time:    now,
	}), exiting)
	conn.ctx.SaveEvent(exiting)

	conn.ctx.ClearLayers()
	h.destroyOverlaySession(conn)
	glog.V(1).Infof("[conn %s] overlay session %#x destroyed", conn.ch.ConnID, args.Session)
	return xr.Success
}

func handleBeginSession(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.BeginSessionArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	ctx := conn.ctx
	ctx.Mu.Lock()
	defer ctx.Mu.Unlock()
	if ctx.State.Running {
		return xr.ErrorSessionRunning
	}
	// The real session is already begun by the main app; the overlay's
	// begin only drives the local lifecycle.
	ctx.State.DoCommand(session.CommandBeginSession)
	return xr.Success
}

func handleEndSession(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.SessionArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	ctx := conn.ctx
	ctx.Mu.Lock()
	if !ctx.State.Running {
		ctx.Mu.Unlock()
		return xr.ErrorSessionNotRunning
	}
	ctx.State.DoCommand(session.CommandEndSession)
	ctx.Mu.Unlock()
	ctx.ClearLayers()
	return xr.Success
}

func handleRequestExitSession(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.SessionArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	ctx := conn.ctx
	ctx.Mu.Lock()
	defer ctx.Mu.Unlock()
	if !ctx.State.Running {
		return xr.ErrorSessionNotRunning
	}
	ctx.State.DoCommand(session.CommandRequestExit)
	return xr.Success
}
