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
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/registry"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

func handleCreateReferenceSpace(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateReferenceSpaceArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	if args.CreateInfo == nil || args.Space == nil {
		return xr.ErrorValidationFailure
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	var real xr.Space
	unlock := h.lockSession(mainCtx)
	res := h.downchain.CreateReferenceSpace(mainCtx.Session, args.CreateInfo, &real)
	unlock()
	if res.Failed() {
		return res
	}

	local := xr.Space(h.reg.Insert(&registry.Info{
		Type:   registry.ObjectSpace,
		Real:   uint64(real),
		Parent: uint64(conn.ctx.LocalSession),
	}))
	conn.ctx.Mu.Lock()
	conn.ctx.LocalSpaces[local] = struct{}{}
	conn.ctx.Mu.Unlock()
	*args.Space = local
	return res
}

func handleCreateActionSpace(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateActionSpaceArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	if args.CreateInfo == nil || args.Space == nil {
		return xr.ErrorValidationFailure
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	if !h.reg.RestoreRealHandles(unsafe.Pointer(args.CreateInfo)) {
		return xr.ErrorHandleInvalid
	}

	var real xr.Space
	unlock := h.lockSession(mainCtx)
	res := h.downchain.CreateActionSpace(mainCtx.Session, args.CreateInfo, &real)
	unlock()
	if res.Failed() {
		return res
	}

	local := xr.Space(h.reg.Insert(&registry.Info{
		Type:   registry.ObjectSpace,
		Real:   uint64(real),
		Parent: uint64(conn.ctx.LocalSession),
	}))
	conn.ctx.Mu.Lock()
	conn.ctx.LocalSpaces[local] = struct{}{}
	conn.ctx.Mu.Unlock()
	*args.Space = local
	return res
}

func handleLocateSpace(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.LocateSpaceArgs](a)
	realSpace, ok1 := h.reg.Real(uint64(args.Space))
	realBase, ok2 := h.reg.Real(uint64(args.BaseSpace))
	if !ok1 || !ok2 {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	var location xr.SpaceLocation
	location.Type = xr.TypeSpaceLocation
	unlock := h.lockSession(mainCtx)
	res := h.downchain.LocateSpace(xr.Space(realSpace), xr.Space(realBase), args.Time, &location)
	unlock()
	if res.Failed() {
		return res
	}
	wire.CopyOutChain(unsafe.Pointer(args.Location), unsafe.Pointer(&location))
	return res
}

func handleDestroySpace(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.SpaceArgs](a)
	info, ok := h.reg.Lookup(uint64(args.Space))
	if !ok || info.Type != registry.ObjectSpace {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx != nil {
		unlock := h.lockSession(mainCtx)
		h.downchain.DestroySpace(xr.Space(info.Real))
		unlock()
	}
	h.reg.Remove(uint64(args.Space))
	if conn.ctx != nil {
		conn.ctx.Mu.Lock()
		delete(conn.ctx.LocalSpaces, args.Space)
		conn.ctx.Mu.Unlock()
	}
	return xr.Success
}
