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
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/texture"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/transport"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/wire"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// Client is the overlay-side implementation of xr.Runtime. Every call
// is serialized into the shared-memory arena, executed in the main
// process, and its results copied back. Swapchain images are local
// shared textures bridged to the real swapchain by the main process.
type Client struct {
	opts Options

	connMu    sync.Mutex
	conn      *transport.RPCChannels
	mainPID   uint32
	connected bool

	instance  xr.Instance
	systemID  xr.SystemID
	adapterID uint64

	mu          sync.Mutex
	swapchains  map[xr.Swapchain]*localSwapchain
	actionOrder []xr.Action
	actionTypes map[xr.Action]xr.ActionType
	actionState map[xr.Action]wire.ActionStatePacked
}

// localSwapchain is the overlay's render target set: one shared texture
// per image, plus the acquired-index FIFO and waited flag.
type localSwapchain struct {
	textures []*texture.Texture
	acquired []uint32
	waited   bool
}

// Connect builds an overlay client. The rendezvous with the main
// process happens lazily on the first call that needs it, bounded by
// Options.NegotiationTimeout.
func Connect(opts Options) *Client {
	return &Client{
		opts:        opts.withDefaults(),
		swapchains:  make(map[xr.Swapchain]*localSwapchain),
		actionTypes: make(map[xr.Action]xr.ActionType),
		actionState: make(map[xr.Action]wire.ActionStatePacked),
	}
}

// Instance returns the shared instance handle, valid once connected.
func (c *Client) Instance() xr.Instance { return c.instance }

// SystemID returns the system identifier, valid once connected.
func (c *Client) SystemID() xr.SystemID { return c.systemID }

// AdapterID identifies the adapter the main process renders on;
// overlays create their device to match.
func (c *Client) AdapterID() uint64 { return c.adapterID }

// ensureConnected performs the negotiation rendezvous, bounded by the
// negotiation timeout, then the handshake and create-instance
// exchanges, which wait until the main answers or its process ends.
func (c *Client) ensureConnected() xr.Result {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.connected {
		return xr.Success
	}

	res, err := transport.Connect(LayerBinaryVersion, c.opts.ArenaSize, c.opts.NegotiationTimeout)
	if err != nil {
		glog.Errorf("overlay: could not reach a main process: %v", err)
		return xr.ErrorRuntimeFailure
	}
	c.conn = res.Channels
	c.mainPID = res.MainPID
	c.connected = true

	hs := wire.HandshakeArgs{
		OverlayPID:     uint32(os.Getpid()),
		OverlayVersion: LayerBinaryVersion,
		MainPID:        new(uint32),
		Instance:       &c.instance,
		SystemID:       &c.systemID,
		AdapterID:      &c.adapterID,
	}
	var ser *wire.HandshakeArgs
	r := c.callLocked(wire.OpHandshake,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeHandshake(a, &hs)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutHandshake(&hs, ser) })
	if r.Failed() {
		return r
	}

	var ici xr.InstanceCreateInfo
	ici.Type = xr.TypeInstanceCreateInfo
	xr.SetName(ici.ApplicationName[:], c.opts.ApplicationName)
	ciArgs := wire.CreateInstanceArgs{CreateInfo: &ici, Instance: &c.instance}
	var ciSer *wire.CreateInstanceArgs
	return c.callLocked(wire.OpCreateInstance,
		func(a *ipc.Arena) (err error) {
			ciSer, err = wire.SerializeCreateInstance(a, &ciArgs)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateInstance(&ciArgs, ciSer) })
}

// call runs one RPC: serialize under the connection mutex, relativize,
// signal the request, wait for the response or main-process death,
// absolutize, copy outputs back.
func (c *Client) call(op wire.Opcode, serialize func(a *ipc.Arena) error, copyOut func(a *ipc.Arena)) xr.Result {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if !c.connected {
		return xr.ErrorRuntimeFailure
	}
	return c.callLocked(op, serialize, copyOut)
}

func (c *Client) callLocked(op wire.Opcode, serialize func(a *ipc.Arena) error, copyOut func(a *ipc.Arena)) xr.Result {
	ch := c.conn
	ch.Mutex.Lock()
	defer ch.Mutex.Unlock()

	a := ch.Arena
	a.Reset(uint64(op))
	if err := serialize(a); err != nil {
		// Overflow is detected before relativize; the partially written
		// request is never signalled to the main process.
		glog.Errorf("overlay: serializing %s failed: %v", op, err)
		return xr.ErrorRuntimeFailure
	}
	a.Relativize()
	ch.FinishRequest()

	if err := ch.WaitForResponse(); err != nil {
		glog.Errorf("overlay: the main process went away during %s: %v", op, err)
		c.connected = false
		return xr.ErrorRuntimeFailure
	}

	a.Absolutize()
	if copyOut != nil {
		copyOut(a)
	}
	return xr.Result(a.Header().Result())
}

// validateSessionChain rejects graphics bindings the bridge cannot
// carry before anything crosses the process boundary.
func validateSessionChain(createInfo *xr.SessionCreateInfo) xr.Result {
	hasBinding := false
	for p := createInfo.Next; p != nil; p = (*xr.BaseInStructure)(p).Next {
		t := (*xr.BaseInStructure)(p).Type
		if xr.ForeignGraphicsBinding(t) {
			return xr.ErrorGraphicsDeviceInvalid
		}
		if t == xr.TypeGraphicsBindingSharedTexture {
			hasBinding = true
		}
	}
	if !hasBinding {
		return xr.ErrorGraphicsDeviceInvalid
	}
	return xr.Success
}

func (c *Client) CreateSession(instance xr.Instance, createInfo *xr.SessionCreateInfo, session *xr.Session) xr.Result {
	if createInfo == nil || session == nil {
		return xr.ErrorValidationFailure
	}
	if res := validateSessionChain(createInfo); res.Failed() {
		return res
	}
	if res := c.ensureConnected(); res.Failed() {
		return res
	}
	if instance == xr.NullHandle {
		instance = c.instance
	}

	args := wire.CreateSessionArgs{Instance: instance, CreateInfo: createInfo, Session: session}
	var ser *wire.CreateSessionArgs
	return c.call(wire.OpCreateSession,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeCreateSession(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateSession(&args, ser) })
}

func (c *Client) DestroySession(session xr.Session) xr.Result {
	args := wire.SessionArgs{Session: session}
	res := c.call(wire.OpDestroySession,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeSession(a, &args)
			return err
		}, nil)
	if res.Succeeded() {
		c.mu.Lock()
		for _, sc := range c.swapchains {
			sc.close()
		}
		c.swapchains = make(map[xr.Swapchain]*localSwapchain)
		c.mu.Unlock()
	}
	return res
}

func (c *Client) BeginSession(session xr.Session, beginInfo *xr.SessionBeginInfo) xr.Result {
	args := wire.BeginSessionArgs{Session: session, BeginInfo: beginInfo}
	return c.call(wire.OpBeginSession,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeBeginSession(a, &args)
			return err
		}, nil)
}

func (c *Client) EndSession(session xr.Session) xr.Result {
	args := wire.SessionArgs{Session: session}
	return c.call(wire.OpEndSession,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeSession(a, &args)
			return err
		}, nil)
}

func (c *Client) RequestExitSession(session xr.Session) xr.Result {
	args := wire.SessionArgs{Session: session}
	return c.call(wire.OpRequestExitSession,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeSession(a, &args)
			return err
		}, nil)
}

func (c *Client) GetSystem(instance xr.Instance, getInfo *xr.SystemGetInfo, systemID *xr.SystemID) xr.Result {
	if res := c.ensureConnected(); res.Failed() {
		return res
	}
	if instance == xr.NullHandle {
		instance = c.instance
	}
	args := wire.GetSystemArgs{Instance: instance, GetInfo: getInfo, SystemID: systemID}
	var ser *wire.GetSystemArgs
	return c.call(wire.OpGetSystem,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeGetSystem(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutGetSystem(&args, ser) })
}

func (c *Client) GetInstanceProperties(instance xr.Instance, properties *xr.InstanceProperties) xr.Result {
	args := wire.GetInstancePropertiesArgs{Instance: instance, Properties: properties}
	var ser *wire.GetInstancePropertiesArgs
	return c.call(wire.OpGetInstanceProperties,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeGetInstanceProperties(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutGetInstanceProperties(&args, ser) })
}

func (c *Client) GetSystemProperties(instance xr.Instance, systemID xr.SystemID, properties *xr.SystemProperties) xr.Result {
	args := wire.GetSystemPropertiesArgs{Instance: instance, SystemID: systemID, Properties: properties}
	var ser *wire.GetSystemPropertiesArgs
	return c.call(wire.OpGetSystemProperties,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeGetSystemProperties(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutGetSystemProperties(&args, ser) })
}

func (c *Client) PollEvent(instance xr.Instance, eventData *xr.EventDataBuffer) xr.Result {
	if eventData == nil {
		return xr.ErrorValidationFailure
	}
	eventData.Type = xr.TypeEventDataBuffer
	args := wire.PollEventArgs{Instance: instance, Event: eventData}
	var ser *wire.PollEventArgs
	return c.call(wire.OpPollEvent,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializePollEvent(a, &args)
			return err
		},
		func(a *ipc.Arena) {
			if ser.Event != nil {
				*eventData = *ser.Event
				eventData.Next = nil
			}
		})
}

func (c *Client) EnumerateViewConfigurations(instance xr.Instance, systemID xr.SystemID, capacityInput uint32, countOutput *uint32, viewConfigurationTypes []xr.ViewConfigurationType) xr.Result {
	args := wire.EnumerateViewConfigurationsArgs{
		Instance:      instance,
		SystemID:      systemID,
		CapacityInput: capacityInput,
		CountOutput:   countOutput,
	}
	if len(viewConfigurationTypes) > 0 {
		args.Types = &viewConfigurationTypes[0]
	}
	var ser *wire.EnumerateViewConfigurationsArgs
	return c.call(wire.OpEnumerateViewConfigurations,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeEnumerateViewConfigurations(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutEnumerateViewConfigurations(&args, ser) })
}

func (c *Client) GetViewConfigurationProperties(instance xr.Instance, systemID xr.SystemID, viewConfigurationType xr.ViewConfigurationType, properties *xr.ViewConfigurationProperties) xr.Result {
	args := wire.GetViewConfigurationPropertiesArgs{
		Instance:              instance,
		SystemID:              systemID,
		ViewConfigurationType: viewConfigurationType,
		Properties:            properties,
	}
	var ser *wire.GetViewConfigurationPropertiesArgs
	return c.call(wire.OpGetViewConfigurationProperties,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeGetViewConfigurationProperties(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutGetViewConfigurationProperties(&args, ser) })
}

func (c *Client) EnumerateViewConfigurationViews(instance xr.Instance, systemID xr.SystemID, viewConfigurationType xr.ViewConfigurationType, capacityInput uint32, countOutput *uint32, views []xr.ViewConfigurationView) xr.Result {
	args := wire.EnumerateViewConfigurationViewsArgs{
		Instance:              instance,
		SystemID:              systemID,
		ViewConfigurationType: viewConfigurationType,
		CapacityInput:         capacityInput,
		CountOutput:           countOutput,
	}
	if len(views) > 0 {
		args.Views = &views[0]
	}
	var ser *wire.EnumerateViewConfigurationViewsArgs
	return c.call(wire.OpEnumerateViewConfigurationViews,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeEnumerateViewConfigurationViews(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutEnumerateViewConfigurationViews(&args, ser) })
}

func (c *Client) EnumerateSwapchainFormats(session xr.Session, capacityInput uint32, countOutput *uint32, formats []int64) xr.Result {
	args := wire.EnumerateSwapchainFormatsArgs{
		Session:             session,
		FormatCapacityInput: capacityInput,
		FormatCountOutput:   countOutput,
	}
	if len(formats) > 0 {
		args.Formats = &formats[0]
	}
	var ser *wire.EnumerateSwapchainFormatsArgs
	return c.call(wire.OpEnumerateSwapchainFormats,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeEnumerateSwapchainFormats(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutEnumerateSwapchainFormats(&args, ser) })
}

// validSwapchainCreateInfo enforces the bridgeable subset: single
// sample, single mip, single layer, color-attachment or sampled usage,
// no create flags.
func validSwapchainCreateInfo(ci *xr.SwapchainCreateInfo) bool {
	if ci.SampleCount != 1 || ci.MipCount != 1 || ci.ArraySize != 1 {
		return false
	}
	if ci.UsageFlags&^(xr.SwapchainUsageColorAttachmentBit|xr.SwapchainUsageSampledBit) != 0 {
		return false
	}
	return ci.CreateFlags == 0
}

func (c *Client) CreateSwapchain(session xr.Session, createInfo *xr.SwapchainCreateInfo, swapchain *xr.Swapchain) xr.Result {
	if createInfo == nil || swapchain == nil {
		return xr.ErrorValidationFailure
	}
	if !validSwapchainCreateInfo(createInfo) {
		return xr.ErrorSwapchainFormatUnsupported
	}

	var imageCount uint32
	args := wire.CreateSwapchainArgs{
		Session:    session,
		CreateInfo: createInfo,
		Swapchain:  swapchain,
		ImageCount: &imageCount,
	}
	var ser *wire.CreateSwapchainArgs
	res := c.call(wire.OpCreateSwapchain,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeCreateSwapchain(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateSwapchain(&args, ser) })
	if res.Failed() {
		return res
	}

	// Create the shared render targets backing this swapchain, named so
	// the main process can open them by handle.
	local := &localSwapchain{}
	for i := uint32(0); i < imageCount; i++ {
		name := transport.TextureSegmentName(uint32(os.Getpid()), uint64(*swapchain), int(i))
		t, err := texture.Create(name, createInfo.Width, createInfo.Height, createInfo.Format)
		if err != nil {
			glog.Errorf("overlay: creating shared texture %s: %v", name, err)
			local.close()
			c.destroyRemote(*swapchain)
			return xr.ErrorRuntimeFailure
		}
		local.textures = append(local.textures, t)
	}

	c.mu.Lock()
	c.swapchains[*swapchain] = local
	c.mu.Unlock()
	return res
}

func (c *Client) destroyRemote(sc xr.Swapchain) {
	args := wire.SwapchainArgs{Swapchain: sc}
	c.call(wire.OpDestroySwapchain,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeSwapchain(a, &args)
			return err
		}, nil)
}

func (c *Client) DestroySwapchain(swapchain xr.Swapchain) xr.Result {
	args := wire.SwapchainArgs{Swapchain: swapchain}
	res := c.call(wire.OpDestroySwapchain,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeSwapchain(a, &args)
			return err
		}, nil)
	if res.Succeeded() {
		c.mu.Lock()
		if local, ok := c.swapchains[swapchain]; ok {
			local.close()
			delete(c.swapchains, swapchain)
		}
		c.mu.Unlock()
	}
	return res
}

func (sc *localSwapchain) close() {
	for _, t := range sc.textures {
		t.Close()
	}
	sc.textures = nil
}

// EnumerateSwapchainImages is answered locally: the images are the
// overlay's own shared render targets.
func (c *Client) EnumerateSwapchainImages(swapchain xr.Swapchain, capacityInput uint32, countOutput *uint32, images []xr.SwapchainImageSharedTexture) xr.Result {
	c.mu.Lock()
	local, ok := c.swapchains[swapchain]
	c.mu.Unlock()
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if countOutput != nil {
		*countOutput = uint32(len(local.textures))
	}
	if capacityInput == 0 {
		return xr.Success
	}
	if capacityInput < uint32(len(local.textures)) {
		return xr.ErrorSizeInsufficient
	}
	for i, t := range local.textures {
		images[i].Type = xr.TypeSwapchainImageSharedTexture
		xr.SetName(images[i].Name[:], t.Name())
	}
	return xr.Success
}

// SwapchainTexture exposes the local render target backing an image, so
// the overlay application can fill its pixels between wait and release.
func (c *Client) SwapchainTexture(swapchain xr.Swapchain, image int) (*texture.Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	local, ok := c.swapchains[swapchain]
	if !ok || image < 0 || image >= len(local.textures) {
		return nil, false
	}
	return local.textures[image], true
}

func (c *Client) AcquireSwapchainImage(swapchain xr.Swapchain, acquireInfo *xr.SwapchainImageAcquireInfo, index *uint32) xr.Result {
	c.mu.Lock()
	local, ok := c.swapchains[swapchain]
	c.mu.Unlock()
	if !ok {
		return xr.ErrorHandleInvalid
	}

	args := wire.AcquireSwapchainImageArgs{Swapchain: swapchain, AcquireInfo: acquireInfo, Index: index}
	var ser *wire.AcquireSwapchainImageArgs
	res := c.call(wire.OpAcquireSwapchainImage,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeAcquireSwapchainImage(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutAcquireSwapchainImage(&args, ser) })
	if res.Failed() {
		return res
	}

	c.mu.Lock()
	if index != nil {
		local.acquired = append(local.acquired, *index)
	}
	c.mu.Unlock()
	return res
}

func (c *Client) WaitSwapchainImage(swapchain xr.Swapchain, waitInfo *xr.SwapchainImageWaitInfo) xr.Result {
	c.mu.Lock()
	local, ok := c.swapchains[swapchain]
	if ok && (local.waited || len(local.acquired) == 0) {
		c.mu.Unlock()
		return xr.ErrorCallOrderInvalid
	}
	if !ok {
		c.mu.Unlock()
		return xr.ErrorHandleInvalid
	}
	image := local.acquired[0]
	tex := local.textures[image]
	c.mu.Unlock()

	args := wire.WaitSwapchainImageArgs{Swapchain: swapchain, WaitInfo: waitInfo}
	xr.SetName(args.SourceImage[:], tex.Name())
	var serErr error
	res := c.call(wire.OpWaitSwapchainImage,
		func(a *ipc.Arena) (err error) {
			_, serErr = wire.SerializeWaitSwapchainImage(a, &args)
			return serErr
		}, nil)
	if res.Failed() {
		return res
	}

	timeout := time.Duration(0)
	if waitInfo != nil && waitInfo.Timeout > 0 {
		timeout = time.Duration(waitInfo.Timeout)
	}
	if err := tex.AcquireSync(xr.KeyOverlay, timeout); err != nil {
		if err == ipc.ErrFutexTimeout {
			return xr.TimeoutExpired
		}
		return xr.ErrorRuntimeFailure
	}

	c.mu.Lock()
	local.waited = true
	c.mu.Unlock()
	return res
}

func (c *Client) ReleaseSwapchainImage(swapchain xr.Swapchain, releaseInfo *xr.SwapchainImageReleaseInfo) xr.Result {
	c.mu.Lock()
	local, ok := c.swapchains[swapchain]
	if !ok {
		c.mu.Unlock()
		return xr.ErrorHandleInvalid
	}
	if !local.waited || len(local.acquired) == 0 {
		c.mu.Unlock()
		return xr.ErrorCallOrderInvalid
	}
	image := local.acquired[0]
	local.acquired = local.acquired[1:]
	tex := local.textures[image]
	c.mu.Unlock()

	// Hand the surface to the main side for the copy.
	tex.ReleaseSync(xr.KeyMain)

	args := wire.ReleaseSwapchainImageArgs{Swapchain: swapchain, ReleaseInfo: releaseInfo}
	xr.SetName(args.SourceImage[:], tex.Name())
	res := c.call(wire.OpReleaseSwapchainImage,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeReleaseSwapchainImage(a, &args)
			return err
		}, nil)

	c.mu.Lock()
	local.waited = false
	c.mu.Unlock()
	return res
}

func (c *Client) CreateReferenceSpace(session xr.Session, createInfo *xr.ReferenceSpaceCreateInfo, space *xr.Space) xr.Result {
	args := wire.CreateReferenceSpaceArgs{Session: session, CreateInfo: createInfo, Space: space}
	var ser *wire.CreateReferenceSpaceArgs
	return c.call(wire.OpCreateReferenceSpace,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeCreateReferenceSpace(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateReferenceSpace(&args, ser) })
}

func (c *Client) CreateActionSpace(session xr.Session, createInfo *xr.ActionSpaceCreateInfo, space *xr.Space) xr.Result {
	args := wire.CreateActionSpaceArgs{Session: session, CreateInfo: createInfo, Space: space}
	var ser *wire.CreateActionSpaceArgs
	return c.call(wire.OpCreateActionSpace,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeCreateActionSpace(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateActionSpace(&args, ser) })
}

func (c *Client) LocateSpace(space xr.Space, baseSpace xr.Space, time xr.Time, location *xr.SpaceLocation) xr.Result {
	args := wire.LocateSpaceArgs{Space: space, BaseSpace: baseSpace, Time: time, Location: location}
	var ser *wire.LocateSpaceArgs
	return c.call(wire.OpLocateSpace,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeLocateSpace(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutLocateSpace(&args, ser) })
}

func (c *Client) DestroySpace(space xr.Space) xr.Result {
	args := wire.SpaceArgs{Space: space}
	return c.call(wire.OpDestroySpace,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeSpace(a, &args)
			return err
		}, nil)
}

func (c *Client) WaitFrame(session xr.Session, frameWaitInfo *xr.FrameWaitInfo, frameState *xr.FrameState) xr.Result {
	if frameState == nil {
		return xr.ErrorValidationFailure
	}
	frameState.Type = xr.TypeFrameState
	args := wire.WaitFrameArgs{Session: session, FrameWaitInfo: frameWaitInfo, FrameState: frameState}
	var ser *wire.WaitFrameArgs
	return c.call(wire.OpWaitFrame,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeWaitFrame(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutWaitFrame(&args, ser) })
}

func (c *Client) BeginFrame(session xr.Session, frameBeginInfo *xr.FrameBeginInfo) xr.Result {
	args := wire.BeginFrameArgs{Session: session, FrameBeginInfo: frameBeginInfo}
	return c.call(wire.OpBeginFrame,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeBeginFrame(a, &args)
			return err
		}, nil)
}

func (c *Client) EndFrame(session xr.Session, frameEndInfo *xr.FrameEndInfo) xr.Result {
	args := wire.EndFrameArgs{Session: session, FrameEndInfo: frameEndInfo}
	return c.call(wire.OpEndFrame,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeEndFrame(a, &args)
			return err
		}, nil)
}

func (c *Client) LocateViews(session xr.Session, viewLocateInfo *xr.ViewLocateInfo, viewState *xr.ViewState, capacityInput uint32, countOutput *uint32, views []xr.View) xr.Result {
	args := wire.LocateViewsArgs{
		Session:        session,
		ViewLocateInfo: viewLocateInfo,
		ViewState:      viewState,
		CapacityInput:  capacityInput,
		CountOutput:    countOutput,
	}
	if len(views) > 0 {
		args.Views = &views[0]
	}
	var ser *wire.LocateViewsArgs
	return c.call(wire.OpLocateViews,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeLocateViews(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutLocateViews(&args, ser) })
}

func (c *Client) CreateActionSet(instance xr.Instance, createInfo *xr.ActionSetCreateInfo, actionSet *xr.ActionSet) xr.Result {
	args := wire.CreateActionSetArgs{Instance: instance, CreateInfo: createInfo, ActionSet: actionSet}
	var ser *wire.CreateActionSetArgs
	return c.call(wire.OpCreateActionSet,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeCreateActionSet(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateActionSet(&args, ser) })
}

func (c *Client) DestroyActionSet(actionSet xr.ActionSet) xr.Result {
	args := wire.ActionSetArgs{ActionSet: actionSet}
	return c.call(wire.OpDestroyActionSet,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeActionSet(a, &args)
			return err
		}, nil)
}

func (c *Client) CreateAction(actionSet xr.ActionSet, createInfo *xr.ActionCreateInfo, action *xr.Action) xr.Result {
	if createInfo == nil || action == nil {
		return xr.ErrorValidationFailure
	}
	args := wire.CreateActionArgs{ActionSet: actionSet, CreateInfo: createInfo, Action: action}
	var ser *wire.CreateActionArgs
	res := c.call(wire.OpCreateAction,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeCreateAction(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutCreateAction(&args, ser) })
	if res.Succeeded() {
		c.mu.Lock()
		c.actionOrder = append(c.actionOrder, *action)
		c.actionTypes[*action] = createInfo.ActionType
		c.mu.Unlock()
	}
	return res
}

func (c *Client) DestroyAction(action xr.Action) xr.Result {
	args := wire.ActionArgs{Action: action}
	res := c.call(wire.OpDestroyAction,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeAction(a, &args)
			return err
		}, nil)
	if res.Succeeded() {
		c.mu.Lock()
		delete(c.actionTypes, action)
		delete(c.actionState, action)
		for i, a := range c.actionOrder {
			if a == action {
				c.actionOrder = append(c.actionOrder[:i], c.actionOrder[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}
	return res
}

// SyncActions batches the sync with a state fetch for every action this
// client created; subsequent GetActionState reads come from the fetched
// snapshot without another round trip.
func (c *Client) SyncActions(session xr.Session, syncInfo *xr.ActionsSyncInfo) xr.Result {
	c.mu.Lock()
	actions := make([]xr.Action, len(c.actionOrder))
	copy(actions, c.actionOrder)
	c.mu.Unlock()

	subactions := make([]xr.Path, len(actions))
	states := make([]wire.ActionStatePacked, len(actions))

	args := wire.SyncActionsAndGetStateArgs{
		Session:     session,
		SyncInfo:    syncInfo,
		ActionCount: uint32(len(actions)),
	}
	if len(actions) > 0 {
		args.Actions = &actions[0]
		args.SubactionPaths = &subactions[0]
		args.States = &states[0]
	}
	var ser *wire.SyncActionsAndGetStateArgs
	res := c.call(wire.OpSyncActionsAndGetState,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeSyncActionsAndGetState(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutSyncActionsAndGetState(&args, ser) })
	if res.Failed() {
		return res
	}

	c.mu.Lock()
	for i, action := range actions {
		c.actionState[action] = states[i]
	}
	c.mu.Unlock()
	return res
}

func (c *Client) cachedState(action xr.Action) (wire.ActionStatePacked, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, known := c.actionTypes[action]; !known {
		return wire.ActionStatePacked{}, false
	}
	return c.actionState[action], true
}

func (c *Client) GetActionStateBoolean(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateBoolean) xr.Result {
	if getInfo == nil || state == nil {
		return xr.ErrorValidationFailure
	}
	packed, ok := c.cachedState(getInfo.Action)
	if !ok {
		return xr.ErrorHandleInvalid
	}
	state.CurrentState = packed.BoolValue
	state.ChangedSinceLastSync = packed.ChangedSinceLastSync
	state.LastChangeTime = packed.LastChangeTime
	state.IsActive = packed.IsActive
	return xr.Success
}

func (c *Client) GetActionStateFloat(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateFloat) xr.Result {
	if getInfo == nil || state == nil {
		return xr.ErrorValidationFailure
	}
	packed, ok := c.cachedState(getInfo.Action)
	if !ok {
		return xr.ErrorHandleInvalid
	}
	state.CurrentState = packed.FloatValue
	state.ChangedSinceLastSync = packed.ChangedSinceLastSync
	state.LastChangeTime = packed.LastChangeTime
	state.IsActive = packed.IsActive
	return xr.Success
}

func (c *Client) GetActionStateVector2f(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateVector2f) xr.Result {
	if getInfo == nil || state == nil {
		return xr.ErrorValidationFailure
	}
	packed, ok := c.cachedState(getInfo.Action)
	if !ok {
		return xr.ErrorHandleInvalid
	}
	state.CurrentX = packed.X
	state.CurrentY = packed.Y
	state.ChangedSinceLastSync = packed.ChangedSinceLastSync
	state.LastChangeTime = packed.LastChangeTime
	state.IsActive = packed.IsActive
	return xr.Success
}

func (c *Client) GetActionStatePose(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStatePose) xr.Result {
	if getInfo == nil || state == nil {
		return xr.ErrorValidationFailure
	}
	packed, ok := c.cachedState(getInfo.Action)
	if !ok {
		return xr.ErrorHandleInvalid
	}
	state.IsActive = packed.IsActive
	return xr.Success
}

func (c *Client) ApplyHapticFeedback(session xr.Session, hapticActionInfo *xr.HapticActionInfo, hapticFeedback *xr.HapticBaseHeader) xr.Result {
	if hapticActionInfo == nil {
		return xr.ErrorValidationFailure
	}
	args := wire.HapticArgs{
		Session:        session,
		Action:         hapticActionInfo.Action,
		SubactionPath:  hapticActionInfo.SubactionPath,
		HapticFeedback: hapticFeedback,
	}
	return c.call(wire.OpApplyHapticFeedback,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeHaptic(a, &args)
			return err
		}, nil)
}

func (c *Client) StopHapticFeedback(session xr.Session, hapticActionInfo *xr.HapticActionInfo) xr.Result {
	if hapticActionInfo == nil {
		return xr.ErrorValidationFailure
	}
	args := wire.HapticArgs{
		Session:       session,
		Action:        hapticActionInfo.Action,
		SubactionPath: hapticActionInfo.SubactionPath,
	}
	return c.call(wire.OpStopHapticFeedback,
		func(a *ipc.Arena) (err error) {
			_, err = wire.SerializeHaptic(a, &args)
			return err
		}, nil)
}

func (c *Client) GetInputSourceLocalizedName(session xr.Session, getInfo *xr.InputSourceLocalizedNameGetInfo, capacityInput uint32, countOutput *uint32, buffer []byte) xr.Result {
	args := wire.GetInputSourceLocalizedNameArgs{
		Session:       session,
		GetInfo:       getInfo,
		CapacityInput: capacityInput,
		CountOutput:   countOutput,
	}
	if len(buffer) > 0 {
		args.Buffer = &buffer[0]
	}
	var ser *wire.GetInputSourceLocalizedNameArgs
	return c.call(wire.OpGetInputSourceLocalizedName,
		func(a *ipc.Arena) (err error) {
			ser, err = wire.SerializeGetInputSourceLocalizedName(a, &args)
			return err
		},
		func(a *ipc.Arena) { wire.CopyOutGetInputSourceLocalizedName(&args, ser) })
}

// Close drops the connection to the main process. Local swapchain
// surfaces are freed; the main side observes the closure and cleans its
// per-connection state.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	c.mu.Lock()
	for _, sc := range c.swapchains {
		sc.close()
	}
	c.swapchains = make(map[xr.Swapchain]*localSwapchain)
	c.mu.Unlock()
	return c.conn.Close()
}

var _ xr.Runtime = (*Client)(nil)
