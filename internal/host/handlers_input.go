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

// actionState is the registry bookkeeping for an overlay-created
// action.
type actionState struct {
	actionType xr.ActionType
}

func handleCreateActionSet(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateActionSetArgs](a)
	if args.Instance != h.instance || args.CreateInfo == nil || args.ActionSet == nil {
		return xr.ErrorHandleInvalid
	}
	if conn.ctx == nil {
		return xr.ErrorHandleInvalid
	}

	var real xr.ActionSet
	res := h.downchain.CreateActionSet(h.instance, args.CreateInfo, &real)
	if res.Failed() {
		return res
	}

	local := xr.ActionSet(h.reg.Insert(&registry.Info{
		Type:   registry.ObjectActionSet,
		Real:   uint64(real),
		Parent: uint64(h.instance),
	}))
	conn.ctx.Mu.Lock()
	conn.ctx.LocalActionSets[local] = struct{}{}
	conn.ctx.Mu.Unlock()
	*args.ActionSet = local
	return res
}

func handleDestroyActionSet(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.ActionSetArgs](a)
	info, ok := h.reg.Lookup(uint64(args.ActionSet))
	if !ok || info.Type != registry.ObjectActionSet {
		return xr.ErrorHandleInvalid
	}
	h.downchain.DestroyActionSet(xr.ActionSet(info.Real))
	h.reg.Remove(uint64(args.ActionSet))
	if conn.ctx != nil {
		conn.ctx.Mu.Lock()
		delete(conn.ctx.LocalActionSets, args.ActionSet)
		conn.ctx.Mu.Unlock()
	}
	return xr.Success
}

func handleCreateAction(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateActionArgs](a)
	if args.CreateInfo == nil || args.Action == nil || conn.ctx == nil {
		return xr.ErrorHandleInvalid
	}
	realSet, ok := h.reg.Real(uint64(args.ActionSet))
	if !ok {
		return xr.ErrorHandleInvalid
	}

	var real xr.Action
	res := h.downchain.CreateAction(xr.ActionSet(realSet), args.CreateInfo, &real)
	if res.Failed() {
		return res
	}

	local := xr.Action(h.reg.Insert(&registry.Info{
		Type:   registry.ObjectAction,
		Real:   uint64(real),
		Parent: uint64(args.ActionSet),
		Data:   &actionState{actionType: args.CreateInfo.ActionType},
	}))
	conn.ctx.Mu.Lock()
	conn.ctx.LocalActions[local] = struct{}{}
	conn.ctx.Mu.Unlock()
	*args.Action = local
	return res
}

func handleDestroyAction(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.ActionArgs](a)
	info, ok := h.reg.Lookup(uint64(args.Action))
	if !ok || info.Type != registry.ObjectAction {
		return xr.ErrorHandleInvalid
	}
	h.downchain.DestroyAction(xr.Action(info.Real))
	h.reg.Remove(uint64(args.Action))
	if conn.ctx != nil {
		conn.ctx.Mu.Lock()
		delete(conn.ctx.LocalActions, args.Action)
		conn.ctx.Mu.Unlock()
	}
	return xr.Success
}

func handleSyncActionsAndGetState(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.SyncActionsAndGetStateArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}

	if args.SyncInfo != nil {
		if !h.reg.RestoreRealHandles(unsafe.Pointer(args.SyncInfo)) {
			return xr.ErrorHandleInvalid
		}
		unlock := h.lockSession(mainCtx)
		res := h.downchain.SyncActions(mainCtx.Session, args.SyncInfo)
		unlock()
		if res.Failed() {
			return res
		}
	}

	if args.ActionCount == 0 || args.Actions == nil || args.States == nil {
		return xr.Success
	}

	actions := unsafe.Slice(args.Actions, args.ActionCount)
	var subactions []xr.Path
	if args.SubactionPaths != nil {
		subactions = unsafe.Slice(args.SubactionPaths, args.ActionCount)
	}
	states := unsafe.Slice(args.States, args.ActionCount)

	unlock := h.lockSession(mainCtx)
	defer unlock()
	for i := range actions {
		info, ok := h.reg.Lookup(uint64(actions[i]))
		if !ok || info.Type != registry.ObjectAction {
			return xr.ErrorHandleInvalid
		}
		st, _ := info.Data.(*actionState)
		if st == nil {
			return xr.ErrorHandleInvalid
		}
		getInfo := xr.ActionStateGetInfo{
			Type:   xr.TypeActionStateGetInfo,
			Action: xr.Action(info.Real),
		}
		if subactions != nil {
			getInfo.SubactionPath = subactions[i]
		}

		states[i] = wire.ActionStatePacked{ActionType: st.actionType}
		switch st.actionType {
		case xr.ActionTypeBooleanInput:
			var s xr.ActionStateBoolean
			s.Type = xr.TypeActionStateBoolean
			if res := h.downchain.GetActionStateBoolean(mainCtx.Session, &getInfo, &s); res.Failed() {
				return res
			}
			states[i].BoolValue = s.CurrentState
			states[i].ChangedSinceLastSync = s.ChangedSinceLastSync
			states[i].IsActive = s.IsActive
			states[i].LastChangeTime = s.LastChangeTime
		case xr.ActionTypeFloatInput:
			var s xr.ActionStateFloat
			s.Type = xr.TypeActionStateFloat
			if res := h.downchain.GetActionStateFloat(mainCtx.Session, &getInfo, &s); res.Failed() {
				return res
			}
			states[i].FloatValue = s.CurrentState
			states[i].ChangedSinceLastSync = s.ChangedSinceLastSync
			states[i].IsActive = s.IsActive
			states[i].LastChangeTime = s.LastChangeTime
		case xr.ActionTypeVector2fInput:
			var s xr.ActionStateVector2f
			s.Type = xr.TypeActionStateVector2f
			if res := h.downchain.GetActionStateVector2f(mainCtx.Session, &getInfo, &s); res.Failed() {
				return res
			}
			states[i].X = s.CurrentX
			states[i].Y = s.CurrentY
			states[i].ChangedSinceLastSync = s.ChangedSinceLastSync
			states[i].IsActive = s.IsActive
			states[i].LastChangeTime = s.LastChangeTime
		case xr.ActionTypePoseInput:
			var s xr.ActionStatePose
			s.Type = xr.TypeActionStatePose
			if res := h.downchain.GetActionStatePose(mainCtx.Session, &getInfo, &s); res.Failed() {
				return res
			}
			states[i].IsActive = s.IsActive
		}
	}
	return xr.Success
}

func handleApplyHapticFeedback(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.HapticArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	real, ok := h.reg.Real(uint64(args.Action))
	if !ok {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	hai := xr.HapticActionInfo{
		Type:          xr.TypeHapticActionInfo,
		Action:        xr.Action(real),
		SubactionPath: args.SubactionPath,
	}
	unlock := h.lockSession(mainCtx)
	defer unlock()
	return h.downchain.ApplyHapticFeedback(mainCtx.Session, &hai, args.HapticFeedback)
}

func handleStopHapticFeedback(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.HapticArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	real, ok := h.reg.Real(uint64(args.Action))
	if !ok {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	hai := xr.HapticActionInfo{
		Type:          xr.TypeHapticActionInfo,
		Action:        xr.Action(real),
		SubactionPath: args.SubactionPath,
	}
	unlock := h.lockSession(mainCtx)
	defer unlock()
	return h.downchain.StopHapticFeedback(mainCtx.Session, &hai)
}

func handleLocateViews(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.LocateViewsArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	if args.ViewLocateInfo == nil {
		return xr.ErrorValidationFailure
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	if !h.reg.RestoreRealHandles(unsafe.Pointer(args.ViewLocateInfo)) {
		return xr.ErrorHandleInvalid
	}

	var viewState xr.ViewState
	viewState.Type = xr.TypeViewState
	var views []xr.View
	if args.Views != nil {
		views = unsafe.Slice(args.Views, args.CapacityInput)
	}

	unlock := h.lockSession(mainCtx)
	res := h.downchain.LocateViews(mainCtx.Session, args.ViewLocateInfo, &viewState, args.CapacityInput, args.CountOutput, views)
	unlock()
	if res.Failed() {
		return res
	}
	wire.CopyOutChain(unsafe.Pointer(args.ViewState), unsafe.Pointer(&viewState))
	return res
}

func handleGetInputSourceLocalizedName(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.GetInputSourceLocalizedNameArgs](a)
	if !conn.validSession(args.Session) {
		return xr.ErrorHandleInvalid
	}
	mainCtx := h.MainContext()
	if mainCtx == nil {
		return xr.ErrorSessionLost
	}
	var buf []byte
	if args.Buffer != nil {
		buf = unsafe.Slice(args.Buffer, args.CapacityInput)
	}
	unlock := h.lockSession(mainCtx)
	defer unlock()
	return h.downchain.GetInputSourceLocalizedName(mainCtx.Session, args.GetInfo, args.CapacityInput, args.CountOutput, buf)
}
