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
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/texture"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// keyedMutexWait bounds the host's keyed-mutex acquire during the
// release-time copy; a stuck producer must not wedge the servicer
// forever.
const keyedMutexWait = 5 * time.Second

// swapchainState is the per-swapchain bookkeeping hung off the handle
// registry: the real handle lives in the registry record, this carries
// the bridge state.
type swapchainState struct {
	createInfo xr.SwapchainCreateInfo
	imageCount uint32

	// realImages names the runtime swapchain's own images, opened
	// lazily for the release-time copy.
	realImages []string

	// acquired is the FIFO of runtime image indices acquired but not
	// yet released.
	acquired []uint32
}

func (h *Host) swapchainFor(conn *Connection, sc xr.Swapchain) (*registry.Info, *swapchainState, xr.Result) {
	if conn.ctx == nil {
		return nil, nil, xr.ErrorHandleInvalid
	}
	if _, owned := conn.ctx.LocalSwapchains[sc]; !owned {
		return nil, nil, xr.ErrorHandleInvalid
	}
	info, ok := h.reg.Lookup(uint64(sc))
	if !ok {
		return nil, nil, xr.ErrorHandleInvalid
	}
	state, ok := info.Data.(*swapchainState)
	if !ok {
		return nil, nil, xr.ErrorHandleInvalid
	}
	return info, state, xr.Success
}

func handleEnumerateSwapchainFormats(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.EnumerateSwapchainFormatsArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	var buf []int64
	if args.Formats != nil {
		buf = unsafe.Slice(args.Formats, args.FormatCapacityInput)
	}
	unlock := h.lockSession(mainCtx)
	defer unlock()
	return h.downchain.EnumerateSwapchainFormats(mainCtx.Session, args.FormatCapacityInput, args.FormatCountOutput, buf)
}

func handleCreateSwapchain(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateSwapchainArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	if args.CreateInfo == nil || args.Swapchain == nil {
		return xr.ErrorValidationFailure
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	var real xr.Swapchain
	unlock := h.lockSession(mainCtx)
	res := h.downchain.CreateSwapchain(mainCtx.Session, args.CreateInfo, &real)
	if res.Failed() {
		unlock()
		return res
	}

	// Learn the runtime swapchain's own images so the release-time
	// copy has a destination.
	var count uint32
	res = h.downchain.EnumerateSwapchainImages(real, 0, &count, nil)
	if res.Failed() || count == 0 {
		h.downchain.DestroySwapchain(real)
		unlock()
		if res.Failed() {
			return res
		}
		return xr.ErrorRuntimeFailure
	}
	images := make([]xr.SwapchainImageSharedTexture, count)
	for i := range images {
		images[i].Type = xr.TypeSwapchainImageSharedTexture
	}
	res = h.downchain.EnumerateSwapchainImages(real, count, &count, images)
	unlock()
	if res.Failed() {
		return res
	}

	state := &swapchainState{
		createInfo: *args.CreateInfo,
		imageCount: count,
	}
	state.createInfo.Next = nil
	for i := range images[:count] {
		state.realImages = append(state.realImages, images[i].TextureName())
	}

	local := xr.Swapchain(h.reg.Insert(&registry.Info{
		Type:   registry.ObjectSwapchain,
		Real:   uint64(real),
		Parent: uint64(conn.ctx.LocalSession),
		Data:   state,
	}))
	conn.ctx.Mu.Lock()
	conn.ctx.LocalSwapchains[local] = struct{}{}
	conn.ctx.Mu.Unlock()

	*args.Swapchain = local
	if args.ImageCount != nil {
		*args.ImageCount = count
	}
	glog.V(1).Infof("[conn %s] swapchain %#x created (%dx%d, %d images)",
		conn.ch.ConnID, local, args.CreateInfo.Width, args.CreateInfo.Height, count)
	return xr.Success
}

// swapchainReferencedByLayers reports whether any overlay's cached
// composition layers still reference the swapchain. Cached layers hold
// real handles, so the local handle is translated first.
func (h *Host) swapchainReferencedByLayers(local xr.Swapchain) bool {
	real, ok := h.reg.Real(uint64(local))
	if !ok {
		return false
	}
	for _, conn := range h.overlayConnections() {
		for _, snap := range conn.ctx.Layers() {
			if layerReferencesSwapchain(snap.Chain.Root, xr.Swapchain(real)) {
				return true
			}
		}
	}
	return false
}

func layerReferencesSwapchain(chain unsafe.Pointer, sc xr.Swapchain) bool {
	for p := chain; p != nil; p = (*xr.BaseInStructure)(p).Next {
		switch (*xr.BaseInStructure)(p).Type {
		case xr.TypeCompositionLayerQuad:
			if (*xr.CompositionLayerQuad)(p).SubImage.Swapchain == sc {
				return true
			}
		case xr.TypeCompositionLayerProjection:
			for _, v := range (*xr.CompositionLayerProjection)(p).ViewList() {
				if v.SubImage.Swapchain == sc {
					return true
				}
			}
		}
	}
	return false
}

func handleDestroySwapchain(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.SwapchainArgs](a)
	info, _, res := h.swapchainFor(conn, args.Swapchain)
	if res.Failed() {
		return res
	}
	h.destroySwapchainLocked(conn, args.Swapchain, info)
	return xr.Success
}

// destroySwapchainLocked removes the local mapping and either destroys
// the runtime swapchain now or defers it until after the next main
// end-frame if a cached overlay layer still references it.
func (h *Host) destroySwapchainLocked(conn *Connection, local xr.Swapchain, info *registry.Info) {
	deferred := h.swapchainReferencedByLayers(local)

	conn.ctx.Mu.Lock()
	delete(conn.ctx.LocalSwapchains, local)
	conn.ctx.Mu.Unlock()
	h.reg.Remove(uint64(local))

	mainCtx := h.MainContext()
	if mainCtx == nil {
		return
	}
	if deferred {
		glog.V(1).Infof("[conn %s] swapchain %#x destroy deferred (referenced by cached layer)", conn.ch.ConnID, local)
		mainCtx.DeferDestroy(xr.Swapchain(info.Real))
		return
	}
	unlock := h.lockSession(mainCtx)
	h.downchain.DestroySwapchain(xr.Swapchain(info.Real))
	unlock()
}

// destroyLocalSwapchain is the cleanup-path variant used when a
// connection is dropped.
func (h *Host) destroyLocalSwapchain(conn *Connection, local xr.Swapchain) {
	info, ok := h.reg.Lookup(uint64(local))
	if !ok {
		return
	}
	h.destroySwapchainLocked(conn, local, info)
}

func handleEnumerateSwapchainImages(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.EnumerateSwapchainImagesArgs](a)
	_, state, res := h.swapchainFor(conn, args.Swapchain)
	if res.Failed() {
		return res
	}
	if args.ImageCountOutput != nil {
		*args.ImageCountOutput = state.imageCount
	}
	if args.ImageCapacityInput == 0 {
		return xr.Success
	}
	if args.ImageCapacityInput < state.imageCount {
		return xr.ErrorSizeInsufficient
	}
	if args.Images != nil {
		out := unsafe.Slice(args.Images, state.imageCount)
		for i := range out {
			out[i].Type = xr.TypeSwapchainImageSharedTexture
			xr.SetName(out[i].Name[:], state.realImages[i])
		}
	}
	return xr.Success
}

func handleAcquireSwapchainImage(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.AcquireSwapchainImageArgs](a)
	info, state, res := h.swapchainFor(conn, args.Swapchain)
	if res.Failed() {
		return res
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	var index uint32
	unlock := h.lockSession(mainCtx)
	res = h.downchain.AcquireSwapchainImage(xr.Swapchain(info.Real), args.AcquireInfo, &index)
	unlock()
	if res.Failed() {
		return res
	}
	state.acquired = append(state.acquired, index)
	if args.Index != nil {
		*args.Index = index
	}
	return res
}

func handleWaitSwapchainImage(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.WaitSwapchainImageArgs](a)
	info, state, res := h.swapchainFor(conn, args.Swapchain)
	if res.Failed() {
		return res
	}
	if len(state.acquired) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	name := xr.GetName(args.SourceImage[:])

	// Hand a previously copied surface back to the producer before it
	// blocks on the keyed mutex.
	if _, held := conn.heldByHost[name]; held {
		if t, err := h.openTexture(name); err == nil {
			t.ReleaseSync(xr.KeyOverlay)
		}
		delete(conn.heldByHost, name)
	}

	unlock := h.lockSession(mainCtx)
	res = h.downchain.WaitSwapchainImage(xr.Swapchain(info.Real), args.WaitInfo)
	unlock()
	if res.Failed() {
		return res
	}
	conn.heldByOverlay[name] = struct{}{}
	return res
}

func handleReleaseSwapchainImage(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.ReleaseSwapchainImageArgs](a)
	info, state, res := h.swapchainFor(conn, args.Swapchain)
	if res.Failed() {
		return res
	}
	if len(state.acquired) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	index := state.acquired[0]
	state.acquired = state.acquired[1:]

	name := xr.GetName(args.SourceImage[:])
	delete(conn.heldByOverlay, name)

	src, err := h.openTexture(name)
	if err != nil {
		glog.Errorf("[conn %s] release: open shared texture %s: %v", conn.ch.ConnID, name, err)
		return xr.ErrorRuntimeFailure
	}

	// Take the surface under the main key, copy it into the runtime
	// swapchain image at the acquired index, and keep the hold until
	// the producer's next wait on this image.
	guard, err := texture.AcquireGuard(src, xr.KeyMain, xr.KeyOverlay, keyedMutexWait)
	if err != nil {
		glog.Errorf("[conn %s] release: keyed mutex acquire on %s: %v", conn.ch.ConnID, name, err)
		return xr.ErrorRuntimeFailure
	}

	if int(index) < len(state.realImages) {
		if dst, err := h.openTexture(state.realImages[index]); err == nil {
			copy(dst.Pixels(), src.Pixels())
		} else {
			glog.Errorf("[conn %s] release: open runtime image %s: %v", conn.ch.ConnID, state.realImages[index], err)
		}
	}

	// Keep holding the surface: the hand-back happens on the overlay's
	// next wait for this image.
	guard.Keep()
	conn.heldByHost[name] = struct{}{}

	unlock := h.lockSession(mainCtx)
	res = h.downchain.ReleaseSwapchainImage(xr.Swapchain(info.Real), args.ReleaseInfo)
	unlock()
	return res
}
