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

package overlaylayer

import (
	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/host"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// MainLayer interposes between the main application and the real
// runtime. It is an xr.Runtime; nearly every call passes straight
// through, while session creation starts hosting overlay connections
// and the frame loop merges overlay composition layers.
type MainLayer struct {
	opts Options
	next xr.Runtime
	host *host.Host

	lastSystemID xr.SystemID
}

// NewMainLayer wraps the real runtime.
func NewMainLayer(next xr.Runtime, opts Options) *MainLayer {
	opts = opts.withDefaults()
	return &MainLayer{
		opts: opts,
		next: next,
		host: host.New(next, host.Config{
			MaxOverlayLayers:    opts.MaxOverlayLayers,
			SerializeEverything: opts.SerializeEverything,
			LayerVersion:        LayerBinaryVersion,
		}),
	}
}

// lockMain serializes a main-app call against servicer threads touching
// the same real session.
func (l *MainLayer) lockMain() func() {
	ctx := l.host.MainContext()
	if ctx == nil {
		return func() {}
	}
	ctx.Mu.Lock()
	return ctx.Mu.Unlock
}

func (l *MainLayer) GetSystem(instance xr.Instance, getInfo *xr.SystemGetInfo, systemID *xr.SystemID) xr.Result {
	res := l.next.GetSystem(instance, getInfo, systemID)
	if res.Succeeded() && systemID != nil {
		l.lastSystemID = *systemID
	}
	return res
}

func (l *MainLayer) GetInstanceProperties(instance xr.Instance, properties *xr.InstanceProperties) xr.Result {
	return l.next.GetInstanceProperties(instance, properties)
}

// GetSystemProperties hides the overlay layer reservation from the main
// application, so the budget overlays compose into stays invisible.
func (l *MainLayer) GetSystemProperties(instance xr.Instance, systemID xr.SystemID, properties *xr.SystemProperties) xr.Result {
	res := l.next.GetSystemProperties(instance, systemID, properties)
	if res.Succeeded() && properties != nil {
		host.AdjustSystemProperties(properties)
	}
	return res
}

// PollEvent forwards to the runtime and replays session-scoped events
// to every connected overlay.
func (l *MainLayer) PollEvent(instance xr.Instance, eventData *xr.EventDataBuffer) xr.Result {
	if l.host.MainContext() == nil {
		return l.next.PollEvent(instance, eventData)
	}
	return l.host.MainPollEvent(eventData)
}

// CreateSession creates the real session and, for a main (non-overlay)
// create, starts the negotiator accepting overlay connections.
func (l *MainLayer) CreateSession(instance xr.Instance, createInfo *xr.SessionCreateInfo, session *xr.Session) xr.Result {
	var adapterID uint64
	if createInfo != nil {
		for p := createInfo.Next; p != nil; p = (*xr.BaseInStructure)(p).Next {
			if (*xr.BaseInStructure)(p).Type == xr.TypeGraphicsBindingSharedTexture {
				adapterID = (*xr.GraphicsBindingSharedTexture)(p).DeviceID
			}
		}
	}

	res := l.next.CreateSession(instance, createInfo, session)
	if res.Failed() {
		return res
	}

	l.host.SetInstance(instance, l.lastSystemID, adapterID)
	if err := l.host.StartMainSession(*session); err != nil {
		glog.Errorf("could not start the overlay negotiator: %v", err)
		l.next.DestroySession(*session)
		return xr.ErrorInitializationFailed
	}
	return res
}

// DestroySession tears down the negotiator and every overlay
// connection before destroying the real session.
func (l *MainLayer) DestroySession(session xr.Session) xr.Result {
	ctx := l.host.MainContext()
	if ctx != nil && ctx.Session == session {
		l.host.StopMainSession()
	}
	return l.next.DestroySession(session)
}

func (l *MainLayer) BeginSession(session xr.Session, beginInfo *xr.SessionBeginInfo) xr.Result {
	defer l.lockMain()()
	return l.next.BeginSession(session, beginInfo)
}

func (l *MainLayer) EndSession(session xr.Session) xr.Result {
	defer l.lockMain()()
	return l.next.EndSession(session)
}

func (l *MainLayer) RequestExitSession(session xr.Session) xr.Result {
	defer l.lockMain()()
	return l.next.RequestExitSession(session)
}

func (l *MainLayer) EnumerateViewConfigurations(instance xr.Instance, systemID xr.SystemID, capacityInput uint32, countOutput *uint32, viewConfigurationTypes []xr.ViewConfigurationType) xr.Result {
	return l.next.EnumerateViewConfigurations(instance, systemID, capacityInput, countOutput, viewConfigurationTypes)
}

func (l *MainLayer) GetViewConfigurationProperties(instance xr.Instance, systemID xr.SystemID, viewConfigurationType xr.ViewConfigurationType, properties *xr.ViewConfigurationProperties) xr.Result {
	return l.next.GetViewConfigurationProperties(instance, systemID, viewConfigurationType, properties)
}

func (l *MainLayer) EnumerateViewConfigurationViews(instance xr.Instance, systemID xr.SystemID, viewConfigurationType xr.ViewConfigurationType, capacityInput uint32, countOutput *uint32, views []xr.ViewConfigurationView) xr.Result {
	return l.next.EnumerateViewConfigurationViews(instance, systemID, viewConfigurationType, capacityInput, countOutput, views)
}

func (l *MainLayer) EnumerateSwapchainFormats(session xr.Session, capacityInput uint32, countOutput *uint32, formats []int64) xr.Result {
	defer l.lockMain()()
	return l.next.EnumerateSwapchainFormats(session, capacityInput, countOutput, formats)
}

func (l *MainLayer) CreateSwapchain(session xr.Session, createInfo *xr.SwapchainCreateInfo, swapchain *xr.Swapchain) xr.Result {
	defer l.lockMain()()
	return l.next.CreateSwapchain(session, createInfo, swapchain)
}

func (l *MainLayer) DestroySwapchain(swapchain xr.Swapchain) xr.Result {
	defer l.lockMain()()
	return l.next.DestroySwapchain(swapchain)
}

func (l *MainLayer) EnumerateSwapchainImages(swapchain xr.Swapchain, capacityInput uint32, countOutput *uint32, images []xr.SwapchainImageSharedTexture) xr.Result {
	return l.next.EnumerateSwapchainImages(swapchain, capacityInput, countOutput, images)
}

func (l *MainLayer) AcquireSwapchainImage(swapchain xr.Swapchain, acquireInfo *xr.SwapchainImageAcquireInfo, index *uint32) xr.Result {
	defer l.lockMain()()
	return l.next.AcquireSwapchainImage(swapchain, acquireInfo, index)
}

func (l *MainLayer) WaitSwapchainImage(swapchain xr.Swapchain, waitInfo *xr.SwapchainImageWaitInfo) xr.Result {
	defer l.lockMain()()
	return l.next.WaitSwapchainImage(swapchain, waitInfo)
}

func (l *MainLayer) ReleaseSwapchainImage(swapchain xr.Swapchain, releaseInfo *xr.SwapchainImageReleaseInfo) xr.Result {
	defer l.lockMain()()
	return l.next.ReleaseSwapchainImage(swapchain, releaseInfo)
}

func (l *MainLayer) CreateReferenceSpace(session xr.Session, createInfo *xr.ReferenceSpaceCreateInfo, space *xr.Space) xr.Result {
	defer l.lockMain()()
	return l.next.CreateReferenceSpace(session, createInfo, space)
}

func (l *MainLayer) CreateActionSpace(session xr.Session, createInfo *xr.ActionSpaceCreateInfo, space *xr.Space) xr.Result {
	defer l.lockMain()()
	return l.next.CreateActionSpace(session, createInfo, space)
}

func (l *MainLayer) LocateSpace(space xr.Space, baseSpace xr.Space, time xr.Time, location *xr.SpaceLocation) xr.Result {
	return l.next.LocateSpace(space, baseSpace, time, location)
}

func (l *MainLayer) DestroySpace(space xr.Space) xr.Result {
	return l.next.DestroySpace(space)
}

// WaitFrame is the source of truth for frame pacing: the runtime result
// is recorded so gated overlay wait-frames can observe it.
func (l *MainLayer) WaitFrame(session xr.Session, frameWaitInfo *xr.FrameWaitInfo, frameState *xr.FrameState) xr.Result {
	ctx := l.host.MainContext()
	if ctx == nil || ctx.Session != session {
		return l.next.WaitFrame(session, frameWaitInfo, frameState)
	}
	return l.host.MainWaitFrame(frameWaitInfo, frameState)
}

func (l *MainLayer) BeginFrame(session xr.Session, frameBeginInfo *xr.FrameBeginInfo) xr.Result {
	defer l.lockMain()()
	return l.next.BeginFrame(session, frameBeginInfo)
}

// EndFrame merges cached overlay layers into the main submission.
func (l *MainLayer) EndFrame(session xr.Session, frameEndInfo *xr.FrameEndInfo) xr.Result {
	ctx := l.host.MainContext()
	if ctx == nil || ctx.Session != session {
		return l.next.EndFrame(session, frameEndInfo)
	}
	return l.host.MainEndFrame(frameEndInfo)
}

func (l *MainLayer) LocateViews(session xr.Session, viewLocateInfo *xr.ViewLocateInfo, viewState *xr.ViewState, capacityInput uint32, countOutput *uint32, views []xr.View) xr.Result {
	defer l.lockMain()()
	return l.next.LocateViews(session, viewLocateInfo, viewState, capacityInput, countOutput, views)
}

func (l *MainLayer) CreateActionSet(instance xr.Instance, createInfo *xr.ActionSetCreateInfo, actionSet *xr.ActionSet) xr.Result {
	return l.next.CreateActionSet(instance, createInfo, actionSet)
}

func (l *MainLayer) DestroyActionSet(actionSet xr.ActionSet) xr.Result {
	return l.next.DestroyActionSet(actionSet)
}

func (l *MainLayer) CreateAction(actionSet xr.ActionSet, createInfo *xr.ActionCreateInfo, action *xr.Action) xr.Result {
	return l.next.CreateAction(actionSet, createInfo, action)
}

func (l *MainLayer) DestroyAction(action xr.Action) xr.Result {
	return l.next.DestroyAction(action)
}

func (l *MainLayer) SyncActions(session xr.Session, syncInfo *xr.ActionsSyncInfo) xr.Result {
	defer l.lockMain()()
	return l.next.SyncActions(session, syncInfo)
}

func (l *MainLayer) GetActionStateBoolean(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateBoolean) xr.Result {
	return l.next.GetActionStateBoolean(session, getInfo, state)
}

func (l *MainLayer) GetActionStateFloat(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateFloat) xr.Result {
	return l.next.GetActionStateFloat(session, getInfo, state)
}

func (l *MainLayer) GetActionStateVector2f(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateVector2f) xr.Result {
	return l.next.GetActionStateVector2f(session, getInfo, state)
}

func (l *MainLayer) GetActionStatePose(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStatePose) xr.Result {
	return l.next.GetActionStatePose(session, getInfo, state)
}

func (l *MainLayer) ApplyHapticFeedback(session xr.Session, hapticActionInfo *xr.HapticActionInfo, hapticFeedback *xr.HapticBaseHeader) xr.Result {
	defer l.lockMain()()
	return l.next.ApplyHapticFeedback(session, hapticActionInfo, hapticFeedback)
}

func (l *MainLayer) StopHapticFeedback(session xr.Session, hapticActionInfo *xr.HapticActionInfo) xr.Result {
	defer l.lockMain()()
	return l.next.StopHapticFeedback(session, hapticActionInfo)
}

func (l *MainLayer) GetInputSourceLocalizedName(session xr.Session, getInfo *xr.InputSourceLocalizedNameGetInfo, capacityInput uint32, countOutput *uint32, buffer []byte) xr.Result {
	return l.next.GetInputSourceLocalizedName(session, getInfo, capacityInput, countOutput, buffer)
}

var _ xr.Runtime = (*MainLayer)(nil)
