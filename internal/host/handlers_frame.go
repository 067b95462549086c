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
	"sort"
	"unsafe"

	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/session"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

func handleWaitFrame(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.WaitFrameArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	ctx := conn.ctx

	// Gate on the main frame loop: the overlay observes only frame
	// states the main wait-frame produced, never calls the runtime.
	state, seq := mainCtx.WaitForFrame(ctx.LastFrameSeq, ctx.RelaxedDisplayTime)
	ctx.Mu.Lock()
	ctx.LastFrameSeq = seq
	ctx.Mu.Unlock()

	if args.FrameState != nil {
		wire.CopyOutChain(unsafe.Pointer(args.FrameState), unsafe.Pointer(&state))
	}
	return xr.Success
}

func handleBeginFrame(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.BeginFrameArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	ctx := conn.ctx
	ctx.Mu.Lock()
	defer ctx.Mu.Unlock()
	if !ctx.State.Running {
		return xr.ErrorSessionNotRunning
	}
	// The main app's begin-frame drives the runtime; the overlay's is
	// satisfied locally.
	return xr.Success
}

// validOverlayLayerType reports whether a submitted layer is one of the
// permitted quad-or-projection types.
func validOverlayLayerType(t xr.StructureType) bool {
	return t == xr.TypeCompositionLayerQuad || t == xr.TypeCompositionLayerProjection
}

func handleEndFrame(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.EndFrameArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	ctx := conn.ctx
	ctx.Mu.Lock()
	running := ctx.State.Running
	ctx.Mu.Unlock()
	if !running {
		return xr.ErrorSessionNotRunning
	}
	if args.FrameEndInfo == nil {
		return xr.ErrorValidationFailure
	}

	layers := args.FrameEndInfo.LayerList()
	if len(layers) > h.cfg.MaxOverlayLayers {
		ctx.ClearLayers()
		return xr.ErrorLimitReached
	}

	// Every layer in the submission must be a permitted type; one
	// invalid entry rejects the whole submission and clears the cached
	// buffer.
	for i := 0; i < len(layers); i++ {
		if layers[i] == nil || !validOverlayLayerType(layers[i].Type) {
			ctx.ClearLayers()
			return xr.ErrorValidationFailure
		}
	}

	// Snapshot each layer chain to the heap and restore real handles so
	// the next main end-frame can splice them in directly.
	snaps := make([]*session.LayerSnapshot, 0, len(layers))
	for _, layer := range layers {
		hc, err := wire.CopyChainToHeap(unsafe.Pointer(layer))
		if err != nil {
			ctx.ClearLayers()
			return xr.ErrorRuntimeFailure
		}
		if !h.reg.RestoreRealHandles(hc.Root) {
			ctx.ClearLayers()
			return xr.ErrorHandleInvalid
		}
		snaps = append(snaps, &session.LayerSnapshot{Chain: hc})
	}
	ctx.SetLayers(snaps)
	glog.V(2).Infof("[conn %s] cached %d overlay layers", conn.ch.ConnID, len(snaps))
	return xr.Success
}

// overlayLayerEntry pairs a cached snapshot with its placement for the
// merge sort.
type overlayLayerEntry struct {
	placement int32
	order     int
	layer     *xr.CompositionLayerBaseHeader
}

// collectOverlayLayers gathers every connection's cached layers,
// stable-sorted by placement ordinal.
func (h *Host) collectOverlayLayers() []overlayLayerEntry {
	var entries []overlayLayerEntry
	for _, conn := range h.overlayConnections() {
		placement := conn.ctx.Placement
		for _, snap := range conn.ctx.Layers() {
			entries = append(entries, overlayLayerEntry{
				placement: placement,
				order:     len(entries),
				layer:     (*xr.CompositionLayerBaseHeader)(snap.Chain.Root),
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].placement != entries[j].placement {
			return entries[i].placement < entries[j].placement
		}
		return entries[i].order < entries[j].order
	})
	return entries
}

// MainEndFrame is the main-side end-frame: it concatenates the main
// app's layers with the cached overlay layers, placement below (< 0) or
// above (>= 0) the main layers, and submits the merged list to the
// runtime. After a successful submit, deferred swapchain destroys are
// retried.
func (h *Host) MainEndFrame(frameEndInfo *xr.FrameEndInfo) xr.Result {
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionNotRunning
	}

	entries := h.collectOverlayLayers()

	var res xr.Result
	if len(entries) == 0 {
		// Pass-through when no overlay layers are cached.
		unlock := h.lockSession(mainCtx)
		res = h.downchain.EndFrame(mainCtx.Session, frameEndInfo)
		unlock()
	} else {
		merged := make([]*xr.CompositionLayerBaseHeader, 0, len(entries)+int(frameEndInfo.LayerCount))
		for _, e := range entries {
			if e.placement < 0 {
				merged = append(merged, e.layer)
			}
		}
		merged = append(merged, frameEndInfo.LayerList()...)
		for _, e := range entries {
			if e.placement >= 0 {
				merged = append(merged, e.layer)
			}
		}

		mergedInfo := *frameEndInfo
		mergedInfo.SetLayerList(merged)

		unlock := h.lockSession(mainCtx)
		res = h.downchain.EndFrame(mainCtx.Session, &mergedInfo)
		unlock()
	}

	if res.Succeeded() {
		h.retryDeferredDestroys(mainCtx)
	}
	return res
}

// retryDeferredDestroys frees swapchains whose destruction was parked
// behind an in-flight composition layer.
func (h *Host) retryDeferredDestroys(mainCtx *session.MainContext) {
	for _, sc := range mainCtx.TakeDeferredDestroys() {
		glog.V(1).Infof("destroying deferred swapchain %#x", sc)
		unlock := h.lockSession(mainCtx)
		h.downchain.DestroySwapchain(sc)
		unlock()
	}
}

// MainWaitFrame is the main-side wait-frame: the runtime call plus the
// publish that releases gated overlays.
func (h *Host) MainWaitFrame(frameWaitInfo *xr.FrameWaitInfo, frameState *xr.FrameState) xr.Result {
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionNotRunning
	}
	unlock := h.lockSession(mainCtx)
	res := h.downchain.WaitFrame(mainCtx.Session, frameWaitInfo, frameState)
	unlock()
	if res.Succeeded() {
		mainCtx.RecordWaitFrame(frameState)
	}
	return res
}
