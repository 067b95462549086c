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

package xr

import "unsafe"

// StructureType tags every chained structure. Values are stable wire
// identifiers; new types may be appended but existing values never change.
type StructureType uint64

const (
	TypeUnknown StructureType = iota
	TypeInstanceCreateInfo
	TypeSessionCreateInfo
	TypeSessionBeginInfo
	TypeSwapchainCreateInfo
	TypeSwapchainImageAcquireInfo
	TypeSwapchainImageWaitInfo
	TypeSwapchainImageReleaseInfo
	TypeReferenceSpaceCreateInfo
	TypeActionSpaceCreateInfo
	TypeSpaceLocation
	TypeViewLocateInfo
	TypeViewState
	TypeView
	TypeFrameWaitInfo
	TypeFrameState
	TypeFrameBeginInfo
	TypeFrameEndInfo
	TypeCompositionLayerQuad
	TypeCompositionLayerProjection
	TypeCompositionLayerProjectionView
	TypeSystemGetInfo
	TypeSystemProperties
	TypeInstanceProperties
	TypeViewConfigurationProperties
	TypeViewConfigurationView
	TypeEventDataBuffer
	TypeEventDataSessionStateChanged
	TypeEventDataSessionLossPending
	TypeEventDataInstanceLossPending
	TypeEventDataEventsLost
	TypeEventDataInteractionProfileChanged
	TypeActionSetCreateInfo
	TypeActionCreateInfo
	TypeActionsSyncInfo
	TypeActionStateGetInfo
	TypeActionStateBoolean
	TypeActionStateFloat
	TypeActionStateVector2f
	TypeActionStatePose
	TypeHapticActionInfo
	TypeHapticVibration
	TypeInputSourceLocalizedNameGetInfo
	TypeInteractionProfileState
	TypeSwapchainImageSharedTexture

	// Extension structure types live above the core range.
	TypeSessionCreateInfoOverlay          StructureType = 1000033000
	TypeGraphicsBindingSharedTexture      StructureType = 1000033001
	TypeGraphicsRequirementsSharedTexture StructureType = 1000033002

	// Foreign graphics binding kinds. The layer recognizes them only to
	// reject session creation; it never bridges them.
	TypeGraphicsBindingVulkan StructureType = 1000033010
	TypeGraphicsBindingOpenGL StructureType = 1000033011
)

// ForeignGraphicsBinding reports whether t is a graphics binding kind
// the bridge does not support.
func ForeignGraphicsBinding(t StructureType) bool {
	return t == TypeGraphicsBindingVulkan || t == TypeGraphicsBindingOpenGL
}

// BaseInStructure is the header every input chain node begins with.
// Chains are walked by casting node pointers to this type and switching
// on Type.
type BaseInStructure struct {
	Type StructureType
	Next unsafe.Pointer
}

// BaseOutStructure is the header every output chain node begins with.
type BaseOutStructure struct {
	Type StructureType
	Next unsafe.Pointer
}

// InstanceCreateInfo describes the application creating an instance.
type InstanceCreateInfo struct {
	Type               StructureType
	Next               unsafe.Pointer
	ApplicationName    [128]byte
	ApplicationVersion uint32
	_                  uint32
	APIVersion         uint64
}

// SessionCreateInfo creates a session against a system. An overlay
// application chains a SessionCreateInfoOverlay node; the graphics
// binding is chained as a GraphicsBindingSharedTexture node.
type SessionCreateInfo struct {
	Type        StructureType
	Next        unsafe.Pointer
	CreateFlags uint64
	SystemID    SystemID
}

// SessionCreateInfoOverlay marks a session create as an overlay session
// and carries the layer-merge placement ordinal.
type SessionCreateInfoOverlay struct {
	Type                   StructureType
	Next                   unsafe.Pointer
	CreateFlags            uint64
	SessionLayersPlacement int32
	_                      uint32
}

// GraphicsBindingSharedTexture is the only graphics binding kind the
// bridge supports: a device capable of shared-handle, keyed-mutex
// surfaces. DeviceID identifies the adapter so both processes create
// their devices on the same one.
type GraphicsBindingSharedTexture struct {
	Type     StructureType
	Next     unsafe.Pointer
	DeviceID uint64
}

// GraphicsRequirementsSharedTexture reports the adapter the main process
// renders on; overlays create their device to match.
type GraphicsRequirementsSharedTexture struct {
	Type      StructureType
	Next      unsafe.Pointer
	AdapterID uint64
	MinAPIVersion uint64
}

// SessionBeginInfo begins a session with a primary view configuration.
type SessionBeginInfo struct {
	Type                         StructureType
	Next                         unsafe.Pointer
	PrimaryViewConfigurationType ViewConfigurationType
}

// SwapchainCreateInfo describes a swapchain. Bridged overlay swapchains
// accept only single-sample, single-mip, single-layer color/sampled
// usage.
type SwapchainCreateInfo struct {
	Type        StructureType
	Next        unsafe.Pointer
	CreateFlags uint64
	UsageFlags  uint64
	Format      int64
	SampleCount uint32
	Width       uint32
	Height      uint32
	FaceCount   uint32
	ArraySize   uint32
	MipCount    uint32
}

type SwapchainImageAcquireInfo struct {
	Type StructureType
	Next unsafe.Pointer
}

type SwapchainImageWaitInfo struct {
	Type    StructureType
	Next    unsafe.Pointer
	Timeout Duration
}

type SwapchainImageReleaseInfo struct {
	Type StructureType
	Next unsafe.Pointer
}

// SwapchainImageSharedTexture is the image element filled in by
// EnumerateSwapchainImages. Name identifies the shared surface; on the
// overlay side it is the overlay's own shared texture.
type SwapchainImageSharedTexture struct {
	Type StructureType
	Next unsafe.Pointer
	Name [64]byte
}

// TextureName returns the shared-surface name as a string.
func (s *SwapchainImageSharedTexture) TextureName() string {
	n := 0
	for n < len(s.Name) && s.Name[n] != 0 {
		n++
	}
	return string(s.Name[:n])
}

type ReferenceSpaceCreateInfo struct {
	Type                 StructureType
	Next                 unsafe.Pointer
	ReferenceSpaceType   ReferenceSpaceType
	PoseInReferenceSpace Posef
	_                    uint32
}

type ActionSpaceCreateInfo struct {
	Type              StructureType
	Next              unsafe.Pointer
	Action            Action
	SubactionPath     Path
	PoseInActionSpace Posef
	_                 uint32
}

type SpaceLocation struct {
	Type          StructureType
	Next          unsafe.Pointer
	LocationFlags uint64
	Pose          Posef
	_             uint32
}

type ViewLocateInfo struct {
	Type                  StructureType
	Next                  unsafe.Pointer
	ViewConfigurationType ViewConfigurationType
	DisplayTime           Time
	Space                 Space
}

type ViewState struct {
	Type           StructureType
	Next           unsafe.Pointer
	ViewStateFlags uint64
}

type View struct {
	Type StructureType
	Next unsafe.Pointer
	Pose Posef
	Fov  Fovf
	_    uint32
}

type FrameWaitInfo struct {
	Type StructureType
	Next unsafe.Pointer
}

// FrameState is the wait-frame result: the source of truth for frame
// pacing, owned by the main session and copied to overlays.
type FrameState struct {
	Type                   StructureType
	Next                   unsafe.Pointer
	PredictedDisplayTime   Time
	PredictedDisplayPeriod Duration
	ShouldRender           Bool32
	_                      uint32
}

type FrameBeginInfo struct {
	Type StructureType
	Next unsafe.Pointer
}

// FrameEndInfo submits composition layers. Layers points at the first
// element of an array of LayerCount pointers to layer structs.
type FrameEndInfo struct {
	Type                 StructureType
	Next                 unsafe.Pointer
	DisplayTime          Time
	EnvironmentBlendMode EnvironmentBlendMode
	LayerCount           uint32
	_                    uint32
	Layers               unsafe.Pointer
}

// LayerList returns the submitted layer pointers as a slice view.
func (f *FrameEndInfo) LayerList() []*CompositionLayerBaseHeader {
	if f.Layers == nil || f.LayerCount == 0 {
		return nil
	}
	return unsafe.Slice((**CompositionLayerBaseHeader)(f.Layers), f.LayerCount)
}

// SetLayerList points Layers at the given slice.
func (f *FrameEndInfo) SetLayerList(layers []*CompositionLayerBaseHeader) {
	f.LayerCount = uint32(len(layers))
	if len(layers) == 0 {
		f.Layers = nil
		return
	}
	f.Layers = unsafe.Pointer(&layers[0])
}

// CompositionLayerBaseHeader is the common prefix of every composition
// layer type.
type CompositionLayerBaseHeader struct {
	Type       StructureType
	Next       unsafe.Pointer
	LayerFlags uint64
	Space      Space
}

type SwapchainSubImage struct {
	Swapchain       Swapchain
	ImageRect       Rect2Di
	ImageArrayIndex uint32
	_               uint32
}

type CompositionLayerQuad struct {
	Type          StructureType
	Next          unsafe.Pointer
	LayerFlags    uint64
	Space         Space
	EyeVisibility EyeVisibility
	SubImage      SwapchainSubImage
	Pose          Posef
	Size          Extent2Df
}

// CompositionLayerProjection carries ViewCount projection views; Views
// points at the first element of the view array.
type CompositionLayerProjection struct {
	Type       StructureType
	Next       unsafe.Pointer
	LayerFlags uint64
	Space      Space
	ViewCount  uint32
	_          uint32
	Views      unsafe.Pointer
}

// ViewList returns the projection views as a slice view.
func (p *CompositionLayerProjection) ViewList() []CompositionLayerProjectionView {
	if p.Views == nil || p.ViewCount == 0 {
		return nil
	}
	return unsafe.Slice((*CompositionLayerProjectionView)(p.Views), p.ViewCount)
}

type CompositionLayerProjectionView struct {
	Type     StructureType
	Next     unsafe.Pointer
	Pose     Posef
	Fov      Fovf
	_        uint32
	SubImage SwapchainSubImage
}

type SystemGetInfo struct {
	Type       StructureType
	Next       unsafe.Pointer
	FormFactor FormFactor
}

type SystemGraphicsProperties struct {
	MaxSwapchainImageHeight uint32
	MaxSwapchainImageWidth  uint32
	MaxLayerCount           uint32
	_                       uint32
}

type SystemTrackingProperties struct {
	OrientationTracking Bool32
	PositionTracking    Bool32
}

type SystemProperties struct {
	Type               StructureType
	Next               unsafe.Pointer
	SystemID           SystemID
	VendorID           uint32
	_                  uint32
	SystemName         [256]byte
	GraphicsProperties SystemGraphicsProperties
	TrackingProperties SystemTrackingProperties
}

type InstanceProperties struct {
	Type           StructureType
	Next           unsafe.Pointer
	RuntimeVersion uint64
	RuntimeName    [128]byte
}

type ViewConfigurationProperties struct {
	Type                  StructureType
	Next                  unsafe.Pointer
	ViewConfigurationType ViewConfigurationType
	FovMutable            Bool32
	_                     uint32
}

type ViewConfigurationView struct {
	Type                            StructureType
	Next                            unsafe.Pointer
	RecommendedImageRectWidth       uint32
	MaxImageRectWidth               uint32
	RecommendedImageRectHeight      uint32
	MaxImageRectHeight              uint32
	RecommendedSwapchainSampleCount uint32
	MaxSwapchainSampleCount         uint32
}

type ActionSetCreateInfo struct {
	Type                   StructureType
	Next                   unsafe.Pointer
	ActionSetName          [64]byte
	LocalizedActionSetName [128]byte
	Priority               uint32
	_                      uint32
}

// ActionCreateInfo creates an action. SubactionPaths points at the first
// element of an array of CountSubactionPaths Path values.
type ActionCreateInfo struct {
	Type                StructureType
	Next                unsafe.Pointer
	ActionName          [64]byte
	ActionType          ActionType
	CountSubactionPaths uint32
	_                   uint32
	SubactionPaths      unsafe.Pointer
	LocalizedActionName [128]byte
}

type ActiveActionSet struct {
	ActionSet     ActionSet
	SubactionPath Path
}

// ActionsSyncInfo syncs a set of action sets. ActiveActionSets points at
// the first element of an array of CountActiveActionSets elements.
type ActionsSyncInfo struct {
	Type                  StructureType
	Next                  unsafe.Pointer
	CountActiveActionSets uint32
	_                     uint32
	ActiveActionSets      unsafe.Pointer
}

type ActionStateGetInfo struct {
	Type          StructureType
	Next          unsafe.Pointer
	Action        Action
	SubactionPath Path
}

type ActionStateBoolean struct {
	Type                 StructureType
	Next                 unsafe.Pointer
	CurrentState         Bool32
	ChangedSinceLastSync Bool32
	LastChangeTime       Time
	IsActive             Bool32
	_                    uint32
}

type ActionStateFloat struct {
	Type                 StructureType
	Next                 unsafe.Pointer
	CurrentState         float32
	ChangedSinceLastSync Bool32
	LastChangeTime       Time
	IsActive             Bool32
	_                    uint32
}

type ActionStateVector2f struct {
	Type                 StructureType
	Next                 unsafe.Pointer
	CurrentX             float32
	CurrentY             float32
	ChangedSinceLastSync Bool32
	_                    uint32
	LastChangeTime       Time
	IsActive             Bool32
	_                    uint32
}

type ActionStatePose struct {
	Type     StructureType
	Next     unsafe.Pointer
	IsActive Bool32
	_        uint32
}

type HapticActionInfo struct {
	Type          StructureType
	Next          unsafe.Pointer
	Action        Action
	SubactionPath Path
}

// HapticBaseHeader is the common prefix of haptic feedback payloads.
type HapticBaseHeader struct {
	Type StructureType
	Next unsafe.Pointer
}

type HapticVibration struct {
	Type      StructureType
	Next      unsafe.Pointer
	Duration  Duration
	Frequency float32
	Amplitude float32
}

type InputSourceLocalizedNameGetInfo struct {
	Type            StructureType
	Next            unsafe.Pointer
	SourcePath      Path
	WhichComponents uint64
}

type InteractionProfileState struct {
	Type               StructureType
	Next               unsafe.Pointer
	InteractionProfile Path
}

// SetName copies s NUL-terminated into dst, truncating if needed.
func SetName(dst []byte, s string) {
	n := copy(dst, s)
	if n == len(dst) {
		n--
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// GetName reads a NUL-terminated string out of a fixed name field.
func GetName(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}
