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

// Opaque handles. The overlay side only ever sees layer-generated local
// identifiers; the main side translates them to the real runtime handles
// through the registry before any downchain call.
type (
	Instance  uint64
	Session   uint64
	Space     uint64
	Swapchain uint64
	Action    uint64
	ActionSet uint64
	Messenger uint64

	SystemID uint64
	Path     uint64
)

// NullHandle is the zero value of every handle type.
const NullHandle = 0

// Time is an absolute timestamp in nanoseconds on the runtime clock.
type Time int64

// Duration is a span of runtime time in nanoseconds.
type Duration int64

// Bool32 is the four-byte boolean used inside wire-visible structures.
type Bool32 uint32

const (
	False Bool32 = 0
	True  Bool32 = 1
)

// SessionState is the runtime-surfaced lifecycle state of a session.
type SessionState uint64

const (
	SessionStateUnknown SessionState = iota
	SessionStateIdle
	SessionStateReady
	SessionStateSynchronized
	SessionStateVisible
	SessionStateFocused
	SessionStateStopping
	SessionStateLossPending
	SessionStateExiting
)

var sessionStateNames = [...]string{
	"UNKNOWN", "IDLE", "READY", "SYNCHRONIZED", "VISIBLE",
	"FOCUSED", "STOPPING", "LOSS_PENDING", "EXITING",
}

func (s SessionState) String() string {
	if int(s) < len(sessionStateNames) {
		return sessionStateNames[s]
	}
	return "SESSION_STATE(?)"
}

// ViewConfigurationType selects a display topology.
type ViewConfigurationType uint64

const (
	ViewConfigurationPrimaryMono   ViewConfigurationType = 1
	ViewConfigurationPrimaryStereo ViewConfigurationType = 2
)

// FormFactor selects the physical system class a system query targets.
type FormFactor uint64

const (
	FormFactorHeadMountedDisplay FormFactor = 1
	FormFactorHandheldDisplay    FormFactor = 2
)

// EyeVisibility selects which eye a quad layer is composed for.
type EyeVisibility uint64

const (
	EyeVisibilityBoth  EyeVisibility = 0
	EyeVisibilityLeft  EyeVisibility = 1
	EyeVisibilityRight EyeVisibility = 2
)

// EnvironmentBlendMode selects how layers blend with the environment.
type EnvironmentBlendMode uint64

const (
	EnvironmentBlendModeOpaque      EnvironmentBlendMode = 1
	EnvironmentBlendModeAdditive    EnvironmentBlendMode = 2
	EnvironmentBlendModeAlphaBlend  EnvironmentBlendMode = 3
)

// ReferenceSpaceType selects the origin of a reference space.
type ReferenceSpaceType uint64

const (
	ReferenceSpaceView  ReferenceSpaceType = 1
	ReferenceSpaceLocal ReferenceSpaceType = 2
	ReferenceSpaceStage ReferenceSpaceType = 3
)

// ActionType selects the value shape of an action.
type ActionType uint64

const (
	ActionTypeBooleanInput  ActionType = 1
	ActionTypeFloatInput    ActionType = 2
	ActionTypeVector2fInput ActionType = 3
	ActionTypePoseInput     ActionType = 4
	ActionTypeVibrationOutput ActionType = 100
)

// Swapchain usage flag bits. Only color-attachment and sampled usage are
// bridgeable across processes.
const (
	SwapchainUsageColorAttachmentBit uint64 = 0x1
	SwapchainUsageSampledBit         uint64 = 0x20
)

// Overlay session create flag bits.
const (
	// OverlaySessionRelaxedDisplayTimeBit permits the frame coordinator
	// to hand this overlay the same frame state twice in a row.
	OverlaySessionRelaxedDisplayTimeBit uint64 = 0x1
)

// Keyed mutex key values coordinating producer/consumer access to a
// shared texture. The overlay side renders under KeyOverlay; the main
// side copies under KeyMain.
const (
	KeyOverlay uint64 = 0
	KeyMain    uint64 = 1
)

// Geometry primitives.

type Vector3f struct{ X, Y, Z float32 }

type Quaternionf struct{ X, Y, Z, W float32 }

type Posef struct {
	Orientation Quaternionf
	Position    Vector3f
}

// IdentityPose returns the pose with no rotation and no translation.
func IdentityPose() Posef {
	return Posef{Orientation: Quaternionf{W: 1}}
}

type Fovf struct{ AngleLeft, AngleRight, AngleUp, AngleDown float32 }

type Extent2Df struct{ Width, Height float32 }

type Offset2Di struct{ X, Y int32 }

type Extent2Di struct{ Width, Height int32 }

type Rect2Di struct {
	Offset Offset2Di
	Extent Extent2Di
}
