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

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// TextureNameLen is the fixed size of shared-texture names on the wire.
const TextureNameLen = 64

// serializeInChain deep-copies an input chain into the arena.
func serializeInChain[T any](a *ipc.Arena, p *T) (*T, error) {
	root, err := CopyChain(unsafe.Pointer(p), CopyEverything, a.Allocate, a.RegisterPointer)
	if err != nil {
		return nil, err
	}
	return (*T)(root), nil
}

// serializeOutChain reproduces an output chain's node headers so the
// host can fill the payloads.
func serializeOutChain[T any](a *ipc.Arena, p *T) (*T, error) {
	root, err := CopyChain(unsafe.Pointer(p), CopyHeaderOnly, a.Allocate, a.RegisterPointer)
	if err != nil {
		return nil, err
	}
	return (*T)(root), nil
}

// serializeHeaderArray reserves an array of chain structs, reproducing
// each element's type tag with a severed chain link, so the host can
// fill the payloads element-wise.
func serializeHeaderArray[T any](a *ipc.Arena, src *T, count uint32) (*T, error) {
	if src == nil || count == 0 {
		return nil, nil
	}
	dst, err := ReserveSlice[T](a, src, count)
	if err != nil {
		return nil, err
	}
	in := unsafe.Slice(src, count)
	out := unsafe.Slice(dst, count)
	for i := range out {
		*(*xr.BaseOutStructure)(unsafe.Pointer(&out[i])) = xr.BaseOutStructure{
			Type: (*xr.BaseOutStructure)(unsafe.Pointer(&in[i])).Type,
		}
	}
	return dst, nil
}

// copyOutHeaderArray copies the payloads of a header array back into the
// caller's elements.
func copyOutHeaderArray[T any](dst, src *T, count uint32) {
	if dst == nil || src == nil {
		return
	}
	in := unsafe.Slice(src, count)
	out := unsafe.Slice(dst, count)
	var zero T
	size := unsafe.Sizeof(zero)
	for i := range out {
		copyBytes(
			unsafe.Add(unsafe.Pointer(&out[i]), chainHeaderSize),
			unsafe.Add(unsafe.Pointer(&in[i]), chainHeaderSize),
			size-chainHeaderSize,
		)
	}
}

// Handshake ----------------------------------------------------------------

type HandshakeArgs struct {
	OverlayPID     uint32
	OverlayVersion uint32
	MainPID        *uint32
	Instance       *xr.Instance
	SystemID       *xr.SystemID
	AdapterID      *uint64
}

func SerializeHandshake(a *ipc.Arena, src *HandshakeArgs) (*HandshakeArgs, error) {
	dst, err := Alloc[HandshakeArgs](a)
	if err != nil {
		return nil, err
	}
	dst.OverlayPID = src.OverlayPID
	dst.OverlayVersion = src.OverlayVersion
	if dst.MainPID, err = Reserve(a, src.MainPID); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.MainPID); err != nil {
		return nil, err
	}
	if dst.Instance, err = Reserve(a, src.Instance); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Instance); err != nil {
		return nil, err
	}
	if dst.SystemID, err = Reserve(a, src.SystemID); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.SystemID); err != nil {
		return nil, err
	}
	if dst.AdapterID, err = Reserve(a, src.AdapterID); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.AdapterID); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutHandshake(dst, src *HandshakeArgs) {
	CopyOut(dst.MainPID, src.MainPID)
	CopyOut(dst.Instance, src.Instance)
	CopyOut(dst.SystemID, src.SystemID)
	CopyOut(dst.AdapterID, src.AdapterID)
}

// CreateInstance -----------------------------------------------------------

type CreateInstanceArgs struct {
	CreateInfo *xr.InstanceCreateInfo
	Instance   *xr.Instance
}

func SerializeCreateInstance(a *ipc.Arena, src *CreateInstanceArgs) (*CreateInstanceArgs, error) {
	dst, err := Alloc[CreateInstanceArgs](a)
	if err != nil {
		return nil, err
	}
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.Instance, err = Reserve(a, src.Instance); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Instance); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateInstance(dst, src *CreateInstanceArgs) {
	CopyOut(dst.Instance, src.Instance)
}

// GetSystem ----------------------------------------------------------------

type GetSystemArgs struct {
	Instance xr.Instance
	GetInfo  *xr.SystemGetInfo
	SystemID *xr.SystemID
}

func SerializeGetSystem(a *ipc.Arena, src *GetSystemArgs) (*GetSystemArgs, error) {
	dst, err := Alloc[GetSystemArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	if dst.GetInfo, err = serializeInChain(a, src.GetInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.GetInfo); err != nil {
		return nil, err
	}
	if dst.SystemID, err = Reserve(a, src.SystemID); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.SystemID); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutGetSystem(dst, src *GetSystemArgs) {
	CopyOut(dst.SystemID, src.SystemID)
}

// CreateSession ------------------------------------------------------------

type CreateSessionArgs struct {
	Instance   xr.Instance
	CreateInfo *xr.SessionCreateInfo
	Session    *xr.Session
}

func SerializeCreateSession(a *ipc.Arena, src *CreateSessionArgs) (*CreateSessionArgs, error) {
	dst, err := Alloc[CreateSessionArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.Session, err = Reserve(a, src.Session); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Session); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateSession(dst, src *CreateSessionArgs) {
	CopyOut(dst.Session, src.Session)
}

// Session lifecycle --------------------------------------------------------

type SessionArgs struct {
	Session xr.Session
}

func SerializeSession(a *ipc.Arena, src *SessionArgs) (*SessionArgs, error) {
	dst, err := Alloc[SessionArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	return dst, nil
}

type BeginSessionArgs struct {
	Session   xr.Session
	BeginInfo *xr.SessionBeginInfo
}

func SerializeBeginSession(a *ipc.Arena, src *BeginSessionArgs) (*BeginSessionArgs, error) {
	dst, err := Alloc[BeginSessionArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.BeginInfo, err = serializeInChain(a, src.BeginInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.BeginInfo); err != nil {
		return nil, err
	}
	return dst, nil
}

// EnumerateSwapchainFormats ------------------------------------------------

type EnumerateSwapchainFormatsArgs struct {
	Session             xr.Session
	FormatCapacityInput uint32
	_                   uint32
	FormatCountOutput   *uint32
	Formats             *int64
}

func SerializeEnumerateSwapchainFormats(a *ipc.Arena, src *EnumerateSwapchainFormatsArgs) (*EnumerateSwapchainFormatsArgs, error) {
	dst, err := Alloc[EnumerateSwapchainFormatsArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	dst.FormatCapacityInput = src.FormatCapacityInput
	if dst.FormatCountOutput, err = Reserve(a, src.FormatCountOutput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.FormatCountOutput); err != nil {
		return nil, err
	}
	if dst.Formats, err = ReserveSlice(a, src.Formats, src.FormatCapacityInput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Formats); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutEnumerateSwapchainFormats(dst, src *EnumerateSwapchainFormatsArgs) {
	CopyOut(dst.FormatCountOutput, src.FormatCountOutput)
	if src.Formats != nil && src.FormatCountOutput != nil {
		CopyOutSlice(dst.Formats, src.Formats, min(src.FormatCapacityInput, *src.FormatCountOutput))
	}
}

// CreateSwapchain ----------------------------------------------------------

type CreateSwapchainArgs struct {
	Session    xr.Session
	CreateInfo *xr.SwapchainCreateInfo
	Swapchain  *xr.Swapchain
	ImageCount *uint32
}

func SerializeCreateSwapchain(a *ipc.Arena, src *CreateSwapchainArgs) (*CreateSwapchainArgs, error) {
	dst, err := Alloc[CreateSwapchainArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.Swapchain, err = Reserve(a, src.Swapchain); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Swapchain); err != nil {
		return nil, err
	}
	if dst.ImageCount, err = Reserve(a, src.ImageCount); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.ImageCount); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateSwapchain(dst, src *CreateSwapchainArgs) {
	CopyOut(dst.Swapchain, src.Swapchain)
	CopyOut(dst.ImageCount, src.ImageCount)
}

// DestroySwapchain ---------------------------------------------------------

type SwapchainArgs struct {
	Swapchain xr.Swapchain
}

func SerializeSwapchain(a *ipc.Arena, src *SwapchainArgs) (*SwapchainArgs, error) {
	dst, err := Alloc[SwapchainArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Swapchain = src.Swapchain
	return dst, nil
}

// EnumerateSwapchainImages -------------------------------------------------

type EnumerateSwapchainImagesArgs struct {
	Swapchain          xr.Swapchain
	ImageCapacityInput uint32
	_                  uint32
	ImageCountOutput   *uint32
	Images             *xr.SwapchainImageSharedTexture
}

func SerializeEnumerateSwapchainImages(a *ipc.Arena, src *EnumerateSwapchainImagesArgs) (*EnumerateSwapchainImagesArgs, error) {
	dst, err := Alloc[EnumerateSwapchainImagesArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Swapchain = src.Swapchain
	dst.ImageCapacityInput = src.ImageCapacityInput
	if dst.ImageCountOutput, err = Reserve(a, src.ImageCountOutput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.ImageCountOutput); err != nil {
		return nil, err
	}
	if dst.Images, err = serializeHeaderArray(a, src.Images, src.ImageCapacityInput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Images); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutEnumerateSwapchainImages(dst, src *EnumerateSwapchainImagesArgs) {
	CopyOut(dst.ImageCountOutput, src.ImageCountOutput)
	if src.Images != nil && src.ImageCountOutput != nil {
		copyOutHeaderArray(dst.Images, src.Images, min(src.ImageCapacityInput, *src.ImageCountOutput))
	}
}

// Acquire/Wait/Release swapchain image -------------------------------------

type AcquireSwapchainImageArgs struct {
	Swapchain   xr.Swapchain
	AcquireInfo *xr.SwapchainImageAcquireInfo
	Index       *uint32
}

func SerializeAcquireSwapchainImage(a *ipc.Arena, src *AcquireSwapchainImageArgs) (*AcquireSwapchainImageArgs, error) {
	dst, err := Alloc[AcquireSwapchainImageArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Swapchain = src.Swapchain
	if dst.AcquireInfo, err = serializeInChain(a, src.AcquireInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.AcquireInfo); err != nil {
		return nil, err
	}
	if dst.Index, err = Reserve(a, src.Index); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Index); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutAcquireSwapchainImage(dst, src *AcquireSwapchainImageArgs) {
	CopyOut(dst.Index, src.Index)
}

type WaitSwapchainImageArgs struct {
	Swapchain   xr.Swapchain
	WaitInfo    *xr.SwapchainImageWaitInfo
	SourceImage [TextureNameLen]byte
}

func SerializeWaitSwapchainImage(a *ipc.Arena, src *WaitSwapchainImageArgs) (*WaitSwapchainImageArgs, error) {
	dst, err := Alloc[WaitSwapchainImageArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Swapchain = src.Swapchain
	dst.SourceImage = src.SourceImage
	if dst.WaitInfo, err = serializeInChain(a, src.WaitInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.WaitInfo); err != nil {
		return nil, err
	}
	return dst, nil
}

type ReleaseSwapchainImageArgs struct {
	Swapchain   xr.Swapchain
	ReleaseInfo *xr.SwapchainImageReleaseInfo
	SourceImage [TextureNameLen]byte
}

func SerializeReleaseSwapchainImage(a *ipc.Arena, src *ReleaseSwapchainImageArgs) (*ReleaseSwapchainImageArgs, error) {
	dst, err := Alloc[ReleaseSwapchainImageArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Swapchain = src.Swapchain
	dst.SourceImage = src.SourceImage
	if dst.ReleaseInfo, err = serializeInChain(a, src.ReleaseInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.ReleaseInfo); err != nil {
		return nil, err
	}
	return dst, nil
}

// Spaces -------------------------------------------------------------------

type CreateReferenceSpaceArgs struct {
	Session    xr.Session
	CreateInfo *xr.ReferenceSpaceCreateInfo
	Space      *xr.Space
}

func SerializeCreateReferenceSpace(a *ipc.Arena, src *CreateReferenceSpaceArgs) (*CreateReferenceSpaceArgs, error) {
	dst, err := Alloc[CreateReferenceSpaceArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.Space, err = Reserve(a, src.Space); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Space); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateReferenceSpace(dst, src *CreateReferenceSpaceArgs) {
	CopyOut(dst.Space, src.Space)
}

type CreateActionSpaceArgs struct {
	Session    xr.Session
	CreateInfo *xr.ActionSpaceCreateInfo
	Space      *xr.Space
}

func SerializeCreateActionSpace(a *ipc.Arena, src *CreateActionSpaceArgs) (*CreateActionSpaceArgs, error) {
	dst, err := Alloc[CreateActionSpaceArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.Space, err = Reserve(a, src.Space); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Space); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateActionSpace(dst, src *CreateActionSpaceArgs) {
	CopyOut(dst.Space, src.Space)
}

type LocateSpaceArgs struct {
	Space     xr.Space
	BaseSpace xr.Space
	Time      xr.Time
	Location  *xr.SpaceLocation
}

func SerializeLocateSpace(a *ipc.Arena, src *LocateSpaceArgs) (*LocateSpaceArgs, error) {
	dst, err := Alloc[LocateSpaceArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Space = src.Space
	dst.BaseSpace = src.BaseSpace
	dst.Time = src.Time
	if dst.Location, err = serializeOutChain(a, src.Location); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Location); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutLocateSpace(dst, src *LocateSpaceArgs) {
	CopyOutChain(unsafe.Pointer(dst.Location), unsafe.Pointer(src.Location))
}

type SpaceArgs struct {
	Space xr.Space
}

func SerializeSpace(a *ipc.Arena, src *SpaceArgs) (*SpaceArgs, error) {
	dst, err := Alloc[SpaceArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Space = src.Space
	return dst, nil
}

// View configuration queries -----------------------------------------------

type EnumerateViewConfigurationsArgs struct {
	Instance      xr.Instance
	SystemID      xr.SystemID
	CapacityInput uint32
	_             uint32
	CountOutput   *uint32
	Types         *xr.ViewConfigurationType
}

func SerializeEnumerateViewConfigurations(a *ipc.Arena, src *EnumerateViewConfigurationsArgs) (*EnumerateViewConfigurationsArgs, error) {
	dst, err := Alloc[EnumerateViewConfigurationsArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	dst.SystemID = src.SystemID
	dst.CapacityInput = src.CapacityInput
	if dst.CountOutput, err = Reserve(a, src.CountOutput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CountOutput); err != nil {
		return nil, err
	}
	if dst.Types, err = ReserveSlice(a, src.Types, src.CapacityInput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Types); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutEnumerateViewConfigurations(dst, src *EnumerateViewConfigurationsArgs) {
	CopyOut(dst.CountOutput, src.CountOutput)
	if src.Types != nil && src.CountOutput != nil {
		CopyOutSlice(dst.Types, src.Types, min(src.CapacityInput, *src.CountOutput))
	}
}

type EnumerateViewConfigurationViewsArgs struct {
	Instance              xr.Instance
	SystemID              xr.SystemID
	ViewConfigurationType xr.ViewConfigurationType
	CapacityInput         uint32
	_                     uint32
	CountOutput           *uint32
	Views                 *xr.ViewConfigurationView
}

func SerializeEnumerateViewConfigurationViews(a *ipc.Arena, src *EnumerateViewConfigurationViewsArgs) (*EnumerateViewConfigurationViewsArgs, error) {
	dst, err := Alloc[EnumerateViewConfigurationViewsArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	dst.SystemID = src.SystemID
	dst.ViewConfigurationType = src.ViewConfigurationType
	dst.CapacityInput = src.CapacityInput
	if dst.CountOutput, err = Reserve(a, src.CountOutput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CountOutput); err != nil {
		return nil, err
	}
	if dst.Views, err = serializeHeaderArray(a, src.Views, src.CapacityInput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Views); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutEnumerateViewConfigurationViews(dst, src *EnumerateViewConfigurationViewsArgs) {
	CopyOut(dst.CountOutput, src.CountOutput)
	if src.Views != nil && src.CountOutput != nil {
		copyOutHeaderArray(dst.Views, src.Views, min(src.CapacityInput, *src.CountOutput))
	}
}

type GetViewConfigurationPropertiesArgs struct {
	Instance              xr.Instance
	SystemID              xr.SystemID
	ViewConfigurationType xr.ViewConfigurationType
	Properties            *xr.ViewConfigurationProperties
}

func SerializeGetViewConfigurationProperties(a *ipc.Arena, src *GetViewConfigurationPropertiesArgs) (*GetViewConfigurationPropertiesArgs, error) {
	dst, err := Alloc[GetViewConfigurationPropertiesArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	dst.SystemID = src.SystemID
	dst.ViewConfigurationType = src.ViewConfigurationType
	if dst.Properties, err = serializeOutChain(a, src.Properties); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Properties); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutGetViewConfigurationProperties(dst, src *GetViewConfigurationPropertiesArgs) {
	CopyOutChain(unsafe.Pointer(dst.Properties), unsafe.Pointer(src.Properties))
}

// Properties ---------------------------------------------------------------

type GetSystemPropertiesArgs struct {
	Instance   xr.Instance
	SystemID   xr.SystemID
	Properties *xr.SystemProperties
}

func SerializeGetSystemProperties(a *ipc.Arena, src *GetSystemPropertiesArgs) (*GetSystemPropertiesArgs, error) {
	dst, err := Alloc[GetSystemPropertiesArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	dst.SystemID = src.SystemID
	if dst.Properties, err = serializeOutChain(a, src.Properties); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Properties); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutGetSystemProperties(dst, src *GetSystemPropertiesArgs) {
	CopyOutChain(unsafe.Pointer(dst.Properties), unsafe.Pointer(src.Properties))
}

type GetInstancePropertiesArgs struct {
	Instance   xr.Instance
	Properties *xr.InstanceProperties
}

func SerializeGetInstanceProperties(a *ipc.Arena, src *GetInstancePropertiesArgs) (*GetInstancePropertiesArgs, error) {
	dst, err := Alloc[GetInstancePropertiesArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	if dst.Properties, err = serializeOutChain(a, src.Properties); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Properties); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutGetInstanceProperties(dst, src *GetInstancePropertiesArgs) {
	CopyOutChain(unsafe.Pointer(dst.Properties), unsafe.Pointer(src.Properties))
}

// PollEvent ----------------------------------------------------------------

type PollEventArgs struct {
	Instance xr.Instance
	Event    *xr.EventDataBuffer
}

func SerializePollEvent(a *ipc.Arena, src *PollEventArgs) (*PollEventArgs, error) {
	dst, err := Alloc[PollEventArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	if dst.Event, err = serializeOutChain(a, src.Event); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Event); err != nil {
		return nil, err
	}
	return dst, nil
}

// Frame loop ---------------------------------------------------------------

type WaitFrameArgs struct {
	Session       xr.Session
	FrameWaitInfo *xr.FrameWaitInfo
	FrameState    *xr.FrameState
}

func SerializeWaitFrame(a *ipc.Arena, src *WaitFrameArgs) (*WaitFrameArgs, error) {
	dst, err := Alloc[WaitFrameArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.FrameWaitInfo, err = serializeInChain(a, src.FrameWaitInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.FrameWaitInfo); err != nil {
		return nil, err
	}
	if dst.FrameState, err = serializeOutChain(a, src.FrameState); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.FrameState); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutWaitFrame(dst, src *WaitFrameArgs) {
	CopyOutChain(unsafe.Pointer(dst.FrameState), unsafe.Pointer(src.FrameState))
}

type BeginFrameArgs struct {
	Session        xr.Session
	FrameBeginInfo *xr.FrameBeginInfo
}

func SerializeBeginFrame(a *ipc.Arena, src *BeginFrameArgs) (*BeginFrameArgs, error) {
	dst, err := Alloc[BeginFrameArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.FrameBeginInfo, err = serializeInChain(a, src.FrameBeginInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.FrameBeginInfo); err != nil {
		return nil, err
	}
	return dst, nil
}

type EndFrameArgs struct {
	Session      xr.Session
	FrameEndInfo *xr.FrameEndInfo
}

func SerializeEndFrame(a *ipc.Arena, src *EndFrameArgs) (*EndFrameArgs, error) {
	dst, err := Alloc[EndFrameArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	if dst.FrameEndInfo, err = serializeInChain(a, src.FrameEndInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.FrameEndInfo); err != nil {
		return nil, err
	}
	return dst, nil
}

// Input --------------------------------------------------------------------

// ActionStatePacked is the wire form of one queried action state. The
// host fills the variant selected by ActionType.
type ActionStatePacked struct {
	ActionType           xr.ActionType
	BoolValue            xr.Bool32
	FloatValue           float32
	X, Y                 float32
	ChangedSinceLastSync xr.Bool32
	IsActive             xr.Bool32
	_                    uint32
	LastChangeTime       xr.Time
}

type SyncActionsAndGetStateArgs struct {
	Session        xr.Session
	SyncInfo       *xr.ActionsSyncInfo
	ActionCount    uint32
	_              uint32
	Actions        *xr.Action
	SubactionPaths *xr.Path
	States         *ActionStatePacked
}

func SerializeSyncActionsAndGetState(a *ipc.Arena, src *SyncActionsAndGetStateArgs) (*SyncActionsAndGetStateArgs, error) {
	dst, err := Alloc[SyncActionsAndGetStateArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	dst.ActionCount = src.ActionCount
	if dst.SyncInfo, err = serializeInChain(a, src.SyncInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.SyncInfo); err != nil {
		return nil, err
	}
	if dst.Actions, err = CopyInSlice(a, src.Actions, src.ActionCount); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Actions); err != nil {
		return nil, err
	}
	if dst.SubactionPaths, err = CopyInSlice(a, src.SubactionPaths, src.ActionCount); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.SubactionPaths); err != nil {
		return nil, err
	}
	if dst.States, err = ReserveSlice(a, src.States, src.ActionCount); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.States); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutSyncActionsAndGetState(dst, src *SyncActionsAndGetStateArgs) {
	CopyOutSlice(dst.States, src.States, src.ActionCount)
}

type HapticArgs struct {
	Session        xr.Session
	Action         xr.Action
	SubactionPath  xr.Path
	HapticFeedback *xr.HapticBaseHeader
}

func SerializeHaptic(a *ipc.Arena, src *HapticArgs) (*HapticArgs, error) {
	dst, err := Alloc[HapticArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	dst.Action = src.Action
	dst.SubactionPath = src.SubactionPath
	if dst.HapticFeedback, err = serializeInChain(a, src.HapticFeedback); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.HapticFeedback); err != nil {
		return nil, err
	}
	return dst, nil
}

type LocateViewsArgs struct {
	Session        xr.Session
	ViewLocateInfo *xr.ViewLocateInfo
	ViewState      *xr.ViewState
	CapacityInput  uint32
	_              uint32
	CountOutput    *uint32
	Views          *xr.View
}

func SerializeLocateViews(a *ipc.Arena, src *LocateViewsArgs) (*LocateViewsArgs, error) {
	dst, err := Alloc[LocateViewsArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	dst.CapacityInput = src.CapacityInput
	if dst.ViewLocateInfo, err = serializeInChain(a, src.ViewLocateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.ViewLocateInfo); err != nil {
		return nil, err
	}
	if dst.ViewState, err = serializeOutChain(a, src.ViewState); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.ViewState); err != nil {
		return nil, err
	}
	if dst.CountOutput, err = Reserve(a, src.CountOutput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CountOutput); err != nil {
		return nil, err
	}
	if dst.Views, err = serializeHeaderArray(a, src.Views, src.CapacityInput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Views); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutLocateViews(dst, src *LocateViewsArgs) {
	CopyOutChain(unsafe.Pointer(dst.ViewState), unsafe.Pointer(src.ViewState))
	CopyOut(dst.CountOutput, src.CountOutput)
	if src.Views != nil && src.CountOutput != nil {
		copyOutHeaderArray(dst.Views, src.Views, min(src.CapacityInput, *src.CountOutput))
	}
}

type GetInputSourceLocalizedNameArgs struct {
	Session       xr.Session
	GetInfo       *xr.InputSourceLocalizedNameGetInfo
	CapacityInput uint32
	_             uint32
	CountOutput   *uint32
	Buffer        *byte
}

func SerializeGetInputSourceLocalizedName(a *ipc.Arena, src *GetInputSourceLocalizedNameArgs) (*GetInputSourceLocalizedNameArgs, error) {
	dst, err := Alloc[GetInputSourceLocalizedNameArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Session = src.Session
	dst.CapacityInput = src.CapacityInput
	if dst.GetInfo, err = serializeInChain(a, src.GetInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.GetInfo); err != nil {
		return nil, err
	}
	if dst.CountOutput, err = Reserve(a, src.CountOutput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CountOutput); err != nil {
		return nil, err
	}
	if dst.Buffer, err = ReserveSlice(a, src.Buffer, src.CapacityInput); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Buffer); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutGetInputSourceLocalizedName(dst, src *GetInputSourceLocalizedNameArgs) {
	CopyOut(dst.CountOutput, src.CountOutput)
	if src.Buffer != nil && src.CountOutput != nil {
		CopyOutSlice(dst.Buffer, src.Buffer, min(src.CapacityInput, *src.CountOutput))
	}
}

// Action objects -----------------------------------------------------------

type CreateActionSetArgs struct {
	Instance   xr.Instance
	CreateInfo *xr.ActionSetCreateInfo
	ActionSet  *xr.ActionSet
}

func SerializeCreateActionSet(a *ipc.Arena, src *CreateActionSetArgs) (*CreateActionSetArgs, error) {
	dst, err := Alloc[CreateActionSetArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Instance = src.Instance
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.ActionSet, err = Reserve(a, src.ActionSet); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.ActionSet); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateActionSet(dst, src *CreateActionSetArgs) {
	CopyOut(dst.ActionSet, src.ActionSet)
}

type ActionSetArgs struct {
	ActionSet xr.ActionSet
}

func SerializeActionSet(a *ipc.Arena, src *ActionSetArgs) (*ActionSetArgs, error) {
	dst, err := Alloc[ActionSetArgs](a)
	if err != nil {
		return nil, err
	}
	dst.ActionSet = src.ActionSet
	return dst, nil
}

type CreateActionArgs struct {
	ActionSet  xr.ActionSet
	CreateInfo *xr.ActionCreateInfo
	Action     *xr.Action
}

func SerializeCreateAction(a *ipc.Arena, src *CreateActionArgs) (*CreateActionArgs, error) {
	dst, err := Alloc[CreateActionArgs](a)
	if err != nil {
		return nil, err
	}
	dst.ActionSet = src.ActionSet
	if dst.CreateInfo, err = serializeInChain(a, src.CreateInfo); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.CreateInfo); err != nil {
		return nil, err
	}
	if dst.Action, err = Reserve(a, src.Action); err != nil {
		return nil, err
	}
	if err = Register(a, &dst.Action); err != nil {
		return nil, err
	}
	return dst, nil
}

func CopyOutCreateAction(dst, src *CreateActionArgs) {
	CopyOut(dst.Action, src.Action)
}

type ActionArgs struct {
	Action xr.Action
}

func SerializeAction(a *ipc.Arena, src *ActionArgs) (*ActionArgs, error) {
	dst, err := Alloc[ActionArgs](a)
	if err != nil {
		return nil, err
	}
	dst.Action = src.Action
	return dst, nil
}
