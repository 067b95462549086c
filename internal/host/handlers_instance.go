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
	"os"
	"unsafe"

	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

func handleHandshake(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.HandshakeArgs](a)
	if args.MainPID != nil {
		*args.MainPID = uint32(os.Getpid())
	}
	if args.Instance != nil {
		*args.Instance = h.instance
	}
	if args.SystemID != nil {
		*args.SystemID = h.systemID
	}
	if args.AdapterID != nil {
		*args.AdapterID = h.adapterID
	}
	glog.V(1).Infof("[conn %s] handshake: overlay pid=%d version=%#x",
		conn.ch.ConnID, args.OverlayPID, args.OverlayVersion)
	return xr.Success
}

func handleCreateInstance(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.CreateInstanceArgs](a)

	// The overlay shares the main instance; its create info is cached
	// for the lifetime of the connection rather than forwarded.
	if args.CreateInfo != nil {
		hc, err := wire.CopyChainToHeap(unsafe.Pointer(args.CreateInfo))
		if err != nil {
			return xr.ErrorRuntimeFailure
		}
		conn.instanceCreateInfo = hc
	}
	if args.Instance != nil {
		*args.Instance = h.instance
	}
	return xr.Success
}

func handleGetSystem(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.GetSystemArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	return h.downchain.GetSystem(h.instance, args.GetInfo, args.SystemID)
}

func handleGetInstanceProperties(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.GetInstancePropertiesArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	var props xr.InstanceProperties
	props.Type = xr.TypeInstanceProperties
	res := h.downchain.GetInstanceProperties(h.instance, &props)
	if res.Failed() {
		return res
	}
	wire.CopyOutChain(unsafe.Pointer(args.Properties), unsafe.Pointer(&props))
	return res
}

func handleGetSystemProperties(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.GetSystemPropertiesArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	var props xr.SystemProperties
	props.Type = xr.TypeSystemProperties
	res := h.downchain.GetSystemProperties(h.instance, args.SystemID, &props)
	if res.Failed() {
		return res
	}
	AdjustSystemProperties(&props)
	wire.CopyOutChain(unsafe.Pointer(args.Properties), unsafe.Pointer(&props))
	return res
}

// AdjustSystemProperties hides the overlay layer reservation from
// applications on either side.
func AdjustSystemProperties(props *xr.SystemProperties) {
	if props.GraphicsProperties.MaxLayerCount >= OverlayLayerBudget {
		props.GraphicsProperties.MaxLayerCount -= OverlayLayerBudget
	} else {
		props.GraphicsProperties.MaxLayerCount = 0
	}
}

func handleEnumerateViewConfigurations(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.EnumerateViewConfigurationsArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	var buf []xr.ViewConfigurationType
	if args.Types != nil {
		buf = unsafe.Slice(args.Types, args.CapacityInput)
	}
	return h.downchain.EnumerateViewConfigurations(h.instance, args.SystemID, args.CapacityInput, args.CountOutput, buf)
}

func handleEnumerateViewConfigurationViews(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.EnumerateViewConfigurationViewsArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	var buf []xr.ViewConfigurationView
	if args.Views != nil {
		buf = unsafe.Slice(args.Views, args.CapacityInput)
	}
	return h.downchain.EnumerateViewConfigurationViews(h.instance, args.SystemID, args.ViewConfigurationType, args.CapacityInput, args.CountOutput, buf)
}

func handleGetViewConfigurationProperties(h *Host, conn *Connection, a *ipc.Arena) xr.Result {
	args := wire.Args[wire.GetViewConfigurationPropertiesArgs](a)
	if args.Instance != h.instance {
		return xr.ErrorHandleInvalid
	}
	var props xr.ViewConfigurationProperties
	props.Type = xr.TypeViewConfigurationProperties
	res := h.downchain.GetViewConfigurationProperties(h.instance, args.SystemID, args.ViewConfigurationType, &props)
	if res.Failed() {
		return res
	}
	wire.CopyOutChain(unsafe.Pointer(args.Properties), unsafe.Pointer(&props))
	return res
}
