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
	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// handlerFunc executes one command against the arena-resident argument
// struct. Handlers must be idempotent in the face of duplicated
// peer-termination cleanup: a repeated destroy of an already destroyed
// handle changes nothing and returns ErrorHandleInvalid.
type handlerFunc func(h *Host, conn *Connection, a *ipc.Arena) xr.Result

// handlers is the opcode dispatch table.
var handlers = map[wire.Opcode]handlerFunc{
	wire.OpHandshake:                       handleHandshake,
	wire.OpCreateInstance:                  handleCreateInstance,
	wire.OpGetSystem:                       handleGetSystem,
	wire.OpCreateSession:                   handleCreateSession,
	wire.OpDestroySession:                  handleDestroySession,
	wire.OpBeginSession:                    handleBeginSession,
	wire.OpEndSession:                      handleEndSession,
	wire.OpRequestExitSession:              handleRequestExitSession,
	wire.OpEnumerateSwapchainFormats:       handleEnumerateSwapchainFormats,
	wire.OpCreateSwapchain:                 handleCreateSwapchain,
	wire.OpDestroySwapchain:                handleDestroySwapchain,
	wire.OpEnumerateSwapchainImages:        handleEnumerateSwapchainImages,
	wire.OpAcquireSwapchainImage:           handleAcquireSwapchainImage,
	wire.OpWaitSwapchainImage:              handleWaitSwapchainImage,
	wire.OpReleaseSwapchainImage:           handleReleaseSwapchainImage,
	wire.OpCreateReferenceSpace:            handleCreateReferenceSpace,
	wire.OpCreateActionSpace:               handleCreateActionSpace,
	wire.OpLocateSpace:                     handleLocateSpace,
	wire.OpDestroySpace:                    handleDestroySpace,
	wire.OpEnumerateViewConfigurations:     handleEnumerateViewConfigurations,
	wire.OpEnumerateViewConfigurationViews: handleEnumerateViewConfigurationViews,
	wire.OpGetViewConfigurationProperties:  handleGetViewConfigurationProperties,
	wire.OpGetSystemProperties:             handleGetSystemProperties,
	wire.OpGetInstanceProperties:           handleGetInstanceProperties,
	wire.OpPollEvent:                       handlePollEvent,
	wire.OpWaitFrame:                       handleWaitFrame,
	wire.OpBeginFrame:                      handleBeginFrame,
	wire.OpEndFrame:                        handleEndFrame,
	wire.OpSyncActionsAndGetState:          handleSyncActionsAndGetState,
	wire.OpStopHapticFeedback:              handleStopHapticFeedback,
	wire.OpApplyHapticFeedback:             handleApplyHapticFeedback,
	wire.OpLocateViews:                     handleLocateViews,
	wire.OpGetInputSourceLocalizedName:     handleGetInputSourceLocalizedName,
	wire.OpCreateActionSet:                 handleCreateActionSet,
	wire.OpDestroyActionSet:                handleDestroyActionSet,
	wire.OpCreateAction:                    handleCreateAction,
	wire.OpDestroyAction:                   handleDestroyAction,
}

// dispatch routes one absolutized arena to its handler.
func dispatch(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	op := wire.Opcode(a.Header().Opcode())
	fn, ok := handlers[op]
	if !ok {
		glog.Errorf("[conn %s] bad opcode %d", conn.ch.ConnID, op)
		return xr.ErrorRuntimeFailure
	}
	glog.V(2).Infof("[conn %s] %s", conn.ch.ConnID, op)
	return fn(h, conn, a)
}

// validSession reports whether the overlay-visible session handle
// matches this connection's session façade.
func (c *Connection) validSession(s xr.Session) bool {
	return c.ctx != nil && c.ctx.LocalSession == s
}
