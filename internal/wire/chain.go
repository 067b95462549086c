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

package wire

import (
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// CopyMode selects how much of each chain node the copier reproduces.
type CopyMode int

const (
	// CopyEverything deep-copies whole nodes, including payload and
	// out-of-chain arrays. Used for inputs the command will consume.
	CopyEverything CopyMode = iota

	// CopyHeaderOnly reproduces each node's type and chain link with a
	// zeroed payload. Used for outputs the host will fill in.
	CopyHeaderOnly
)

// AllocFunc allocates n zeroed bytes for a copied node.
type AllocFunc func(n uintptr) (unsafe.Pointer, error)

// RegisterFunc records the address of a pointer the copy wrote, so the
// arena can rebase it across the process boundary. Heap copies pass a
// no-op.
type RegisterFunc func(loc unsafe.Pointer) error

// structSize returns the byte size of a known chainable structure type.
// Unknown types report false and are dropped from copied chains.
func structSize(t xr.StructureType) (uintptr, bool) {
	switch t {
	case xr.TypeInstanceCreateInfo:
		return unsafe.Sizeof(xr.InstanceCreateInfo{}), true
	case xr.TypeSessionCreateInfo:
		return unsafe.Sizeof(xr.SessionCreateInfo{}), true
	case xr.TypeSessionCreateInfoOverlay:
		return unsafe.Sizeof(xr.SessionCreateInfoOverlay{}), true
	case xr.TypeGraphicsBindingSharedTexture:
		return unsafe.Sizeof(xr.GraphicsBindingSharedTexture{}), true
	case xr.TypeGraphicsRequirementsSharedTexture:
		return unsafe.Sizeof(xr.GraphicsRequirementsSharedTexture{}), true
	case xr.TypeSessionBeginInfo:
		return unsafe.Sizeof(xr.SessionBeginInfo{}), true
	case xr.TypeSwapchainCreateInfo:
		return unsafe.Sizeof(xr.SwapchainCreateInfo{}), true
	case xr.TypeSwapchainImageAcquireInfo:
		return unsafe.Sizeof(xr.SwapchainImageAcquireInfo{}), true
	case xr.TypeSwapchainImageWaitInfo:
		return unsafe.Sizeof(xr.SwapchainImageWaitInfo{}), true
	case xr.TypeSwapchainImageReleaseInfo:
		return unsafe.Sizeof(xr.SwapchainImageReleaseInfo{}), true
	case xr.TypeSwapchainImageSharedTexture:
		return unsafe.Sizeof(xr.SwapchainImageSharedTexture{}), true
	case xr.TypeReferenceSpaceCreateInfo:
		return unsafe.Sizeof(xr.ReferenceSpaceCreateInfo{}), true
	case xr.TypeActionSpaceCreateInfo:
		return unsafe.Sizeof(xr.ActionSpaceCreateInfo{}), true
	case xr.TypeSpaceLocation:
		return unsafe.Sizeof(xr.SpaceLocation{}), true
	case xr.TypeViewLocateInfo:
		return unsafe.Sizeof(xr.ViewLocateInfo{}), true
	case xr.TypeViewState:
		return unsafe.Sizeof(xr.ViewState{}), true
	case xr.TypeView:
		return unsafe.Sizeof(xr.View{}), true
	case xr.TypeFrameWaitInfo:
		return unsafe.Sizeof(xr.FrameWaitInfo{}), true
	case xr.TypeFrameState:
		return unsafe.Sizeof(xr.FrameState{}), true
	case xr.TypeFrameBeginInfo:
		return unsafe.Sizeof(xr.FrameBeginInfo{}), true
	case xr.TypeFrameEndInfo:
		return unsafe.Sizeof(xr.FrameEndInfo{}), true
	case xr.TypeCompositionLayerQuad:
		return unsafe.Sizeof(xr.CompositionLayerQuad{}), true
	case xr.TypeCompositionLayerProjection:
		return unsafe.Sizeof(xr.CompositionLayerProjection{}), true
	case xr.TypeCompositionLayerProjectionView:
		return unsafe.Sizeof(xr.CompositionLayerProjectionView{}), true
	case xr.TypeSystemGetInfo:
		return unsafe.Sizeof(xr.SystemGetInfo{}), true
	case xr.TypeSystemProperties:
		return unsafe.Sizeof(xr.SystemProperties{}), true
	case xr.TypeInstanceProperties:
		return unsafe.Sizeof(xr.InstanceProperties{}), true
	case xr.TypeViewConfigurationProperties:
		return unsafe.Sizeof(xr.ViewConfigurationProperties{}), true
	case xr.TypeViewConfigurationView:
		return unsafe.Sizeof(xr.ViewConfigurationView{}), true
	case xr.TypeEventDataBuffer:
		return unsafe.Sizeof(xr.EventDataBuffer{}), true
	case xr.TypeEventDataSessionStateChanged:
		return unsafe.Sizeof(xr.EventDataSessionStateChanged{}), true
	case xr.TypeEventDataSessionLossPending:
		return unsafe.Sizeof(xr.EventDataSessionLossPending{}), true
	case xr.TypeEventDataInstanceLossPending:
		return unsafe.Sizeof(xr.EventDataInstanceLossPending{}), true
	case xr.TypeEventDataEventsLost:
		return unsafe.Sizeof(xr.EventDataEventsLost{}), true
	case xr.TypeEventDataInteractionProfileChanged:
		return unsafe.Sizeof(xr.EventDataInteractionProfileChanged{}), true
	case xr.TypeActionSetCreateInfo:
		return unsafe.Sizeof(xr.ActionSetCreateInfo{}), true
	case xr.TypeActionCreateInfo:
		return unsafe.Sizeof(xr.ActionCreateInfo{}), true
	case xr.TypeActionsSyncInfo:
		return unsafe.Sizeof(xr.ActionsSyncInfo{}), true
	case xr.TypeActionStateGetInfo:
		return unsafe.Sizeof(xr.ActionStateGetInfo{}), true
	case xr.TypeActionStateBoolean:
		return unsafe.Sizeof(xr.ActionStateBoolean{}), true
	case xr.TypeActionStateFloat:
		return unsafe.Sizeof(xr.ActionStateFloat{}), true
	case xr.TypeActionStateVector2f:
		return unsafe.Sizeof(xr.ActionStateVector2f{}), true
	case xr.TypeActionStatePose:
		return unsafe.Sizeof(xr.ActionStatePose{}), true
	case xr.TypeHapticActionInfo:
		return unsafe.Sizeof(xr.HapticActionInfo{}), true
	case xr.TypeHapticVibration:
		return unsafe.Sizeof(xr.HapticVibration{}), true
	case xr.TypeInputSourceLocalizedNameGetInfo:
		return unsafe.Sizeof(xr.InputSourceLocalizedNameGetInfo{}), true
	case xr.TypeInteractionProfileState:
		return unsafe.Sizeof(xr.InteractionProfileState{}), true
	}
	return 0, false
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}

// CopyChain deep-copies the extension chain rooted at src. Nodes of
// unknown type are dropped from the output chain, so the reader must
// tolerate shorter chains. Every pointer written into the copy (chain
// links and out-of-chain arrays) is reported through register.
func CopyChain(src unsafe.Pointer, mode CopyMode, alloc AllocFunc, register RegisterFunc) (unsafe.Pointer, error) {
	if src == nil {
		return nil, nil
	}

	base := (*xr.BaseInStructure)(src)
	size, known := structSize(base.Type)
	if !known {
		// Skip the node entirely; keep walking.
		return CopyChain(base.Next, mode, alloc, register)
	}

	dst, err := alloc(size)
	if err != nil {
		return nil, err
	}

	if mode == CopyEverything {
		copyBytes(dst, src, size)
		if err := copyNestedArrays(dst, mode, alloc, register); err != nil {
			return nil, err
		}
	} else {
		// Header-only: the host fills the payload in.
		(*xr.BaseOutStructure)(dst).Type = base.Type
	}

	next, err := CopyChain(base.Next, mode, alloc, register)
	if err != nil {
		return nil, err
	}
	dstBase := (*xr.BaseInStructure)(dst)
	dstBase.Next = next
	if next != nil {
		if err := register(unsafe.Pointer(&dstBase.Next)); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

// copyNestedArrays deep-copies the out-of-chain arrays a few structure
// types carry, rewriting the copied node's array pointers in place.
func copyNestedArrays(dst unsafe.Pointer, mode CopyMode, alloc AllocFunc, register RegisterFunc) error {
	switch (*xr.BaseInStructure)(dst).Type {
	case xr.TypeFrameEndInfo:
		fei := (*xr.FrameEndInfo)(dst)
		if fei.Layers == nil || fei.LayerCount == 0 {
			fei.Layers = nil
			return nil
		}
		src := unsafe.Slice((**xr.CompositionLayerBaseHeader)(fei.Layers), fei.LayerCount)
		arr, err := alloc(unsafe.Sizeof(uintptr(0)) * uintptr(fei.LayerCount))
		if err != nil {
			return err
		}
		out := unsafe.Slice((**xr.CompositionLayerBaseHeader)(arr), fei.LayerCount)
		for i, layer := range src {
			copied, err := CopyChain(unsafe.Pointer(layer), mode, alloc, register)
			if err != nil {
				return err
			}
			out[i] = (*xr.CompositionLayerBaseHeader)(copied)
			if copied != nil {
				if err := register(unsafe.Pointer(&out[i])); err != nil {
					return err
				}
			}
		}
		fei.Layers = arr
		return register(unsafe.Pointer(&fei.Layers))

	case xr.TypeCompositionLayerProjection:
		proj := (*xr.CompositionLayerProjection)(dst)
		if proj.Views == nil || proj.ViewCount == 0 {
			proj.Views = nil
			return nil
		}
		viewSize := unsafe.Sizeof(xr.CompositionLayerProjectionView{})
		arr, err := alloc(viewSize * uintptr(proj.ViewCount))
		if err != nil {
			return err
		}
		copyBytes(arr, proj.Views, viewSize*uintptr(proj.ViewCount))
		// Per-view extension chains are copied; unknown nodes drop out.
		views := unsafe.Slice((*xr.CompositionLayerProjectionView)(arr), proj.ViewCount)
		for i := range views {
			next, err := CopyChain(views[i].Next, mode, alloc, register)
			if err != nil {
				return err
			}
			views[i].Next = next
			if next != nil {
				if err := register(unsafe.Pointer(&views[i].Next)); err != nil {
					return err
				}
			}
		}
		proj.Views = arr
		return register(unsafe.Pointer(&proj.Views))

	case xr.TypeActionsSyncInfo:
		si := (*xr.ActionsSyncInfo)(dst)
		if si.ActiveActionSets == nil || si.CountActiveActionSets == 0 {
			si.ActiveActionSets = nil
			return nil
		}
		elemSize := unsafe.Sizeof(xr.ActiveActionSet{})
		arr, err := alloc(elemSize * uintptr(si.CountActiveActionSets))
		if err != nil {
			return err
		}
		copyBytes(arr, si.ActiveActionSets, elemSize*uintptr(si.CountActiveActionSets))
		si.ActiveActionSets = arr
		return register(unsafe.Pointer(&si.ActiveActionSets))

	case xr.TypeActionCreateInfo:
		ci := (*xr.ActionCreateInfo)(dst)
		if ci.SubactionPaths == nil || ci.CountSubactionPaths == 0 {
			ci.SubactionPaths = nil
			return nil
		}
		elemSize := unsafe.Sizeof(xr.Path(0))
		arr, err := alloc(elemSize * uintptr(ci.CountSubactionPaths))
		if err != nil {
			return err
		}
		copyBytes(arr, ci.SubactionPaths, elemSize*uintptr(ci.CountSubactionPaths))
		ci.SubactionPaths = arr
		return register(unsafe.Pointer(&ci.SubactionPaths))
	}
	return nil
}

// HeapChain owns a chain copied onto the Go heap for long-lived caching
// of input structures. The blocks keep every node reachable for the
// collector, since chain links are untyped.
type HeapChain struct {
	Root   unsafe.Pointer
	blocks [][]byte
}

// CopyChainToHeap deep-copies a chain into process-local memory.
func CopyChainToHeap(src unsafe.Pointer) (*HeapChain, error) {
	hc := &HeapChain{}
	alloc := func(n uintptr) (unsafe.Pointer, error) {
		b := make([]byte, n)
		hc.blocks = append(hc.blocks, b)
		return unsafe.Pointer(&b[0]), nil
	}
	register := func(unsafe.Pointer) error { return nil }
	root, err := CopyChain(src, CopyEverything, alloc, register)
	if err != nil {
		return nil, err
	}
	hc.Root = root
	return hc, nil
}

// CopyOutChain copies known-type payloads from a source output chain
// into the caller's destination chain. Destination nodes whose type does
// not match the next known source node are skipped; source nodes of
// unknown type were already dropped during serialization, so the two
// walks re-synchronize on the next shared type.
func CopyOutChain(dst, src unsafe.Pointer) {
	for src != nil && dst != nil {
		sb := (*xr.BaseOutStructure)(src)
		db := (*xr.BaseOutStructure)(dst)
		if db.Type != sb.Type {
			// This destination node has no serialized counterpart.
			dst = db.Next
			continue
		}
		if size, known := structSize(sb.Type); known && size > chainHeaderSize {
			copyBytes(
				unsafe.Add(dst, chainHeaderSize),
				unsafe.Add(src, chainHeaderSize),
				size-chainHeaderSize,
			)
		}
		dst = db.Next
		src = sb.Next
	}
}

// chainHeaderSize is the size of the {type, next} prefix every chain
// node begins with.
const chainHeaderSize = unsafe.Sizeof(xr.BaseOutStructure{})

// CopyEventToBuffer captures a single event chain node into the caller's
// event buffer, truncating oversized payloads and terminating the chain.
func CopyEventToBuffer(src unsafe.Pointer, buf *xr.EventDataBuffer) {
	if src == nil {
		return
	}
	sb := (*xr.BaseOutStructure)(src)
	size, known := structSize(sb.Type)
	if !known {
		return
	}
	if max := unsafe.Sizeof(xr.EventDataBuffer{}); size > max {
		size = max
	}
	copyBytes(unsafe.Pointer(buf), src, size)
	buf.Next = nil
	buf.Type = sb.Type
}
