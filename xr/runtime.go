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

// Runtime is the downchain compositor API. The main layer wraps a real
// Runtime and is itself a Runtime; the overlay client implements Runtime
// over shared-memory RPC. Capacity/count enumerations follow the
// two-call idiom: with capacityInput zero only countOutput is written;
// otherwise up to min(capacityInput, produced) elements are filled and
// ErrorSizeInsufficient is returned when capacityInput is too small.
type Runtime interface {
	GetSystem(instance Instance, getInfo *SystemGetInfo, systemID *SystemID) Result
	GetInstanceProperties(instance Instance, properties *InstanceProperties) Result
	GetSystemProperties(instance Instance, systemID SystemID, properties *SystemProperties) Result
	PollEvent(instance Instance, eventData *EventDataBuffer) Result

	CreateSession(instance Instance, createInfo *SessionCreateInfo, session *Session) Result
	DestroySession(session Session) Result
	BeginSession(session Session, beginInfo *SessionBeginInfo) Result
	EndSession(session Session) Result
	RequestExitSession(session Session) Result

	EnumerateViewConfigurations(instance Instance, systemID SystemID, capacityInput uint32, countOutput *uint32, viewConfigurationTypes []ViewConfigurationType) Result
	GetViewConfigurationProperties(instance Instance, systemID SystemID, viewConfigurationType ViewConfigurationType, properties *ViewConfigurationProperties) Result
	EnumerateViewConfigurationViews(instance Instance, systemID SystemID, viewConfigurationType ViewConfigurationType, capacityInput uint32, countOutput *uint32, views []ViewConfigurationView) Result

	EnumerateSwapchainFormats(session Session, capacityInput uint32, countOutput *uint32, formats []int64) Result
	CreateSwapchain(session Session, createInfo *SwapchainCreateInfo, swapchain *Swapchain) Result
	DestroySwapchain(swapchain Swapchain) Result
	EnumerateSwapchainImages(swapchain Swapchain, capacityInput uint32, countOutput *uint32, images []SwapchainImageSharedTexture) Result
	AcquireSwapchainImage(swapchain Swapchain, acquireInfo *SwapchainImageAcquireInfo, index *uint32) Result
	WaitSwapchainImage(swapchain Swapchain, waitInfo *SwapchainImageWaitInfo) Result
	ReleaseSwapchainImage(swapchain Swapchain, releaseInfo *SwapchainImageReleaseInfo) Result

	CreateReferenceSpace(session Session, createInfo *ReferenceSpaceCreateInfo, space *Space) Result
	CreateActionSpace(session Session, createInfo *ActionSpaceCreateInfo, space *Space) Result
	LocateSpace(space Space, baseSpace Space, time Time, location *SpaceLocation) Result
	DestroySpace(space Space) Result

	WaitFrame(session Session, frameWaitInfo *FrameWaitInfo, frameState *FrameState) Result
	BeginFrame(session Session, frameBeginInfo *FrameBeginInfo) Result
	EndFrame(session Session, frameEndInfo *FrameEndInfo) Result
	LocateViews(session Session, viewLocateInfo *ViewLocateInfo, viewState *ViewState, capacityInput uint32, countOutput *uint32, views []View) Result

	CreateActionSet(instance Instance, createInfo *ActionSetCreateInfo, actionSet *ActionSet) Result
	DestroyActionSet(actionSet ActionSet) Result
	CreateAction(actionSet ActionSet, createInfo *ActionCreateInfo, action *Action) Result
	DestroyAction(action Action) Result
	SyncActions(session Session, syncInfo *ActionsSyncInfo) Result
	GetActionStateBoolean(session Session, getInfo *ActionStateGetInfo, state *ActionStateBoolean) Result
	GetActionStateFloat(session Session, getInfo *ActionStateGetInfo, state *ActionStateFloat) Result
	GetActionStateVector2f(session Session, getInfo *ActionStateGetInfo, state *ActionStateVector2f) Result
	GetActionStatePose(session Session, getInfo *ActionStateGetInfo, state *ActionStatePose) Result
	ApplyHapticFeedback(session Session, hapticActionInfo *HapticActionInfo, hapticFeedback *HapticBaseHeader) Result
	StopHapticFeedback(session Session, hapticActionInfo *HapticActionInfo) Result
	GetInputSourceLocalizedName(session Session, getInfo *InputSourceLocalizedNameGetInfo, capacityInput uint32, countOutput *uint32, buffer []byte) Result
}
