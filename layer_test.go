package overlaylayer

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/transport"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// startMain brings up a fake runtime, wraps it in the main layer and
// creates the main session, which starts the negotiator.
func startMain(t *testing.T) (*fakeRuntime, *MainLayer, xr.Session) {
	t.Helper()
	// Scavenge anything a crashed previous run left behind.
	ipc.RemoveSegment(transport.NegotiationSegmentName)

	rt := newFakeRuntime()
	layer := NewMainLayer(rt, Options{})

	var systemID xr.SystemID
	getInfo := xr.SystemGetInfo{Type: xr.TypeSystemGetInfo, FormFactor: xr.FormFactorHeadMountedDisplay}
	require.Equal(t, xr.Success, layer.GetSystem(1, &getInfo, &systemID))

	binding := xr.GraphicsBindingSharedTexture{Type: xr.TypeGraphicsBindingSharedTexture, DeviceID: 7}
	createInfo := xr.SessionCreateInfo{
		Type:     xr.TypeSessionCreateInfo,
		Next:     unsafe.Pointer(&binding),
		SystemID: systemID,
	}
	var session xr.Session
	require.Equal(t, xr.Success, layer.CreateSession(1, &createInfo, &session))
	t.Cleanup(func() { layer.DestroySession(session) })
	return rt, layer, session
}

// connectOverlay builds an overlay client and creates its overlay
// session with the given placement.
func connectOverlay(t *testing.T, placement int32) (*Client, xr.Session) {
	t.Helper()
	c := Connect(Options{NegotiationTimeout: 5 * time.Second})
	t.Cleanup(func() { c.Close() })

	session := createOverlaySession(t, c, placement)
	return c, session
}

func createOverlaySession(t *testing.T, c *Client, placement int32) xr.Session {
	t.Helper()
	overlayInfo := xr.SessionCreateInfoOverlay{
		Type:                   xr.TypeSessionCreateInfoOverlay,
		SessionLayersPlacement: placement,
	}
	binding := xr.GraphicsBindingSharedTexture{
		Type:     xr.TypeGraphicsBindingSharedTexture,
		Next:     unsafe.Pointer(&overlayInfo),
		DeviceID: 7,
	}
	createInfo := xr.SessionCreateInfo{
		Type: xr.TypeSessionCreateInfo,
		Next: unsafe.Pointer(&binding),
	}
	var session xr.Session
	require.Equal(t, xr.Success, c.CreateSession(0, &createInfo, &session))
	require.NotZero(t, session)
	return session
}

func makeSwapchain(t *testing.T, c *Client, session xr.Session, w, h uint32) xr.Swapchain {
	t.Helper()
	ci := xr.SwapchainCreateInfo{
		Type:        xr.TypeSwapchainCreateInfo,
		UsageFlags:  xr.SwapchainUsageColorAttachmentBit | xr.SwapchainUsageSampledBit,
		Format:      28,
		SampleCount: 1,
		Width:       w,
		Height:      h,
		FaceCount:   1,
		ArraySize:   1,
		MipCount:    1,
	}
	var sc xr.Swapchain
	require.Equal(t, xr.Success, c.CreateSwapchain(session, &ci, &sc))
	return sc
}

func submitQuad(t *testing.T, c *Client, session xr.Session, sc xr.Swapchain, space xr.Space, displayTime xr.Time) {
	t.Helper()
	quad := xr.CompositionLayerQuad{
		Type:  xr.TypeCompositionLayerQuad,
		Space: space,
		SubImage: xr.SwapchainSubImage{
			Swapchain: sc,
			ImageRect: xr.Rect2Di{Extent: xr.Extent2Di{Width: 2, Height: 2}},
		},
		Pose: xr.IdentityPose(),
		Size: xr.Extent2Df{Width: 0.33, Height: 0.33},
	}
	layers := []*xr.CompositionLayerBaseHeader{
		(*xr.CompositionLayerBaseHeader)(unsafe.Pointer(&quad)),
	}
	fei := xr.FrameEndInfo{
		Type:                 xr.TypeFrameEndInfo,
		DisplayTime:          displayTime,
		EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
	}
	fei.SetLayerList(layers)
	require.Equal(t, xr.Success, c.EndFrame(session, &fei))
}

func makeSpace(t *testing.T, c *Client, session xr.Session) xr.Space {
	t.Helper()
	ci := xr.ReferenceSpaceCreateInfo{
		Type:                 xr.TypeReferenceSpaceCreateInfo,
		ReferenceSpaceType:   xr.ReferenceSpaceView,
		PoseInReferenceSpace: xr.IdentityPose(),
	}
	var space xr.Space
	require.Equal(t, xr.Success, c.CreateReferenceSpace(session, &ci, &space))
	return space
}

func beginOverlaySession(t *testing.T, c *Client, session xr.Session) {
	t.Helper()
	bi := xr.SessionBeginInfo{
		Type:                         xr.TypeSessionBeginInfo,
		PrimaryViewConfigurationType: xr.ViewConfigurationPrimaryStereo,
	}
	require.Equal(t, xr.Success, c.BeginSession(session, &bi))
}

func mainWaitFrame(t *testing.T, layer *MainLayer, session xr.Session) xr.FrameState {
	t.Helper()
	var fs xr.FrameState
	fs.Type = xr.TypeFrameState
	require.Equal(t, xr.Success, layer.WaitFrame(session, nil, &fs))
	return fs
}

func TestHandshakeAndSystemQuery(t *testing.T) {
	rt, layer, mainSession := startMain(t)
	_ = mainSession

	c, _ := connectOverlay(t, 1)

	var props xr.SystemProperties
	props.Type = xr.TypeSystemProperties
	require.Equal(t, xr.Success, c.GetSystemProperties(c.Instance(), c.SystemID(), &props))
	assert.Equal(t, rt.maxLayerCount-2, props.GraphicsProperties.MaxLayerCount,
		"overlay reservation must be hidden from the overlay app")
	assert.Equal(t, "fake-hmd", xr.GetName(props.SystemName[:]))

	// The reservation is hidden from the main app too.
	var mainProps xr.SystemProperties
	mainProps.Type = xr.TypeSystemProperties
	require.Equal(t, xr.Success, layer.GetSystemProperties(1, rt.systemID, &mainProps))
	assert.Equal(t, rt.maxLayerCount-2, mainProps.GraphicsProperties.MaxLayerCount)
}

func TestOverlayBeforeMain(t *testing.T) {
	// No main process exists; session creation must fail after the
	// bounded negotiation wait without registering a handle.
	ipc.RemoveSegment(transport.NegotiationSegmentName)

	c := Connect(Options{NegotiationTimeout: 1 * time.Second})
	defer c.Close()

	overlayInfo := xr.SessionCreateInfoOverlay{Type: xr.TypeSessionCreateInfoOverlay}
	binding := xr.GraphicsBindingSharedTexture{
		Type: xr.TypeGraphicsBindingSharedTexture,
		Next: unsafe.Pointer(&overlayInfo),
	}
	createInfo := xr.SessionCreateInfo{Type: xr.TypeSessionCreateInfo, Next: unsafe.Pointer(&binding)}

	start := time.Now()
	var session xr.Session
	res := c.CreateSession(0, &createInfo, &session)
	assert.Equal(t, xr.ErrorRuntimeFailure, res)
	assert.Zero(t, session)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestForeignGraphicsBindingRejected(t *testing.T) {
	c := Connect(Options{NegotiationTimeout: time.Second})
	defer c.Close()

	binding := xr.BaseInStructure{Type: xr.TypeGraphicsBindingVulkan}
	createInfo := xr.SessionCreateInfo{Type: xr.TypeSessionCreateInfo, Next: unsafe.Pointer(&binding)}
	var session xr.Session
	assert.Equal(t, xr.ErrorGraphicsDeviceInvalid, c.CreateSession(0, &createInfo, &session))
}

func TestCapacityCountIdiom(t *testing.T) {
	rt, _, _ := startMain(t)
	c, session := connectOverlay(t, 1)

	var count uint32
	require.Equal(t, xr.Success, c.EnumerateSwapchainFormats(session, 0, &count, nil))
	require.Equal(t, uint32(len(rt.formats)), count)

	formats := make([]int64, count)
	require.Equal(t, xr.Success, c.EnumerateSwapchainFormats(session, count, &count, formats))
	assert.Equal(t, rt.formats, formats)

	short := make([]int64, count-1)
	res := c.EnumerateSwapchainFormats(session, count-1, &count, short)
	assert.Equal(t, xr.ErrorSizeInsufficient, res)
	assert.Equal(t, uint32(len(rt.formats)), count, "count output is written unconditionally")
}

func TestLayerMergeOrdering(t *testing.T) {
	rt, layer, mainSession := startMain(t)

	// The higher-placement overlay connects first; the merge must still
	// order by placement, not arrival.
	cHigh, sessHigh := connectOverlay(t, 3)
	cLow, sessLow := connectOverlay(t, 1)

	beginOverlaySession(t, cHigh, sessHigh)
	beginOverlaySession(t, cLow, sessLow)

	fsMain := mainWaitFrame(t, layer, mainSession)

	scHigh := makeSwapchain(t, cHigh, sessHigh, 2, 2)
	scLow := makeSwapchain(t, cLow, sessLow, 2, 2)
	spHigh := makeSpace(t, cHigh, sessHigh)
	spLow := makeSpace(t, cLow, sessLow)

	var fs xr.FrameState
	fs.Type = xr.TypeFrameState
	require.Equal(t, xr.Success, cHigh.WaitFrame(sessHigh, nil, &fs))
	submitQuad(t, cHigh, sessHigh, scHigh, spHigh, fs.PredictedDisplayTime)

	require.Equal(t, xr.Success, cLow.WaitFrame(sessLow, nil, &fs))
	submitQuad(t, cLow, sessLow, scLow, spLow, fs.PredictedDisplayTime)

	// Main submits two projection layers of its own.
	views := make([]xr.CompositionLayerProjectionView, 1)
	views[0].Type = xr.TypeCompositionLayerProjectionView
	var projections [2]xr.CompositionLayerProjection
	layerPtrs := make([]*xr.CompositionLayerBaseHeader, 2)
	for i := range projections {
		projections[i].Type = xr.TypeCompositionLayerProjection
		projections[i].ViewCount = 1
		projections[i].Views = unsafe.Pointer(&views[0])
		layerPtrs[i] = (*xr.CompositionLayerBaseHeader)(unsafe.Pointer(&projections[i]))
	}
	fei := xr.FrameEndInfo{
		Type:                 xr.TypeFrameEndInfo,
		DisplayTime:          fsMain.PredictedDisplayTime,
		EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
	}
	fei.SetLayerList(layerPtrs)
	require.Equal(t, xr.Success, layer.EndFrame(mainSession, &fei))

	require.Equal(t, []xr.StructureType{
		xr.TypeCompositionLayerProjection,
		xr.TypeCompositionLayerProjection,
		xr.TypeCompositionLayerQuad,
		xr.TypeCompositionLayerQuad,
	}, rt.lastEndFrameLayers, "main layers first, then overlays by placement")

	// Placement 1 connected second, so its real swapchain handle is the
	// larger one; it must still appear before placement 3.
	require.Len(t, rt.lastEndFrameSwaps, 2)
	assert.Greater(t, rt.lastEndFrameSwaps[0], rt.lastEndFrameSwaps[1],
		"placement 1 quad precedes placement 3 quad")
}

func TestImageCopy(t *testing.T) {
	rt, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)

	mainWaitFrame(t, layer, mainSession)

	sc := makeSwapchain(t, c, session, 2, 2)

	var index uint32
	acquireInfo := xr.SwapchainImageAcquireInfo{Type: xr.TypeSwapchainImageAcquireInfo}
	require.Equal(t, xr.Success, c.AcquireSwapchainImage(sc, &acquireInfo, &index))

	waitInfo := xr.SwapchainImageWaitInfo{Type: xr.TypeSwapchainImageWaitInfo, Timeout: xr.Duration(time.Second)}
	require.Equal(t, xr.Success, c.WaitSwapchainImage(sc, &waitInfo))

	tex, ok := c.SwapchainTexture(sc, int(index))
	require.True(t, ok)
	pixels := tex.Pixels()
	for i := 0; i < len(pixels); i += 4 {
		pixels[i+0] = 0xFF // red
		pixels[i+1] = 0x00
		pixels[i+2] = 0x00
		pixels[i+3] = 0xFF
	}

	releaseInfo := xr.SwapchainImageReleaseInfo{Type: xr.TypeSwapchainImageReleaseInfo}
	require.Equal(t, xr.Success, c.ReleaseSwapchainImage(sc, &releaseInfo))

	// The release-time copy placed the pixels into the runtime
	// swapchain image at the acquired index.
	rt.mu.Lock()
	var realImages *fakeSwapchain
	for _, fs := range rt.swapchains {
		realImages = fs
	}
	rt.mu.Unlock()
	require.NotNil(t, realImages)
	got := realImages.images[index].Pixels()
	for i := 0; i < len(got); i += 4 {
		assert.Equal(t, byte(0xFF), got[i+0])
		assert.Equal(t, byte(0x00), got[i+1])
		assert.Equal(t, byte(0xFF), got[i+3])
	}
}

func TestSwapchainCallOrder(t *testing.T) {
	_, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)
	mainWaitFrame(t, layer, mainSession)

	sc := makeSwapchain(t, c, session, 2, 2)

	// Wait without a prior acquire fails.
	waitInfo := xr.SwapchainImageWaitInfo{Type: xr.TypeSwapchainImageWaitInfo, Timeout: xr.Duration(time.Second)}
	assert.Equal(t, xr.ErrorCallOrderInvalid, c.WaitSwapchainImage(sc, &waitInfo))

	// Release without a prior wait fails.
	var index uint32
	acquireInfo := xr.SwapchainImageAcquireInfo{Type: xr.TypeSwapchainImageAcquireInfo}
	require.Equal(t, xr.Success, c.AcquireSwapchainImage(sc, &acquireInfo, &index))
	releaseInfo := xr.SwapchainImageReleaseInfo{Type: xr.TypeSwapchainImageReleaseInfo}
	assert.Equal(t, xr.ErrorCallOrderInvalid, c.ReleaseSwapchainImage(sc, &releaseInfo))
}

func TestInvalidSwapchainCreateInfo(t *testing.T) {
	_, _, _ = startMain(t)
	c, session := connectOverlay(t, 1)

	ci := xr.SwapchainCreateInfo{
		Type:        xr.TypeSwapchainCreateInfo,
		UsageFlags:  xr.SwapchainUsageColorAttachmentBit,
		SampleCount: 4, // multisampling cannot be bridged
		Width:       2,
		Height:      2,
		FaceCount:   1,
		ArraySize:   1,
		MipCount:    1,
	}
	var sc xr.Swapchain
	assert.Equal(t, xr.ErrorSwapchainFormatUnsupported, c.CreateSwapchain(session, &ci, &sc))
}

func TestDestroySessionTwice(t *testing.T) {
	_, _, _ = startMain(t)
	c, session := connectOverlay(t, 1)

	assert.Equal(t, xr.Success, c.DestroySession(session))
	assert.Equal(t, xr.ErrorHandleInvalid, c.DestroySession(session))
}

func TestWaitFrameMonotonic(t *testing.T) {
	_, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)

	var last xr.Time
	for i := 0; i < 3; i++ {
		mainWaitFrame(t, layer, mainSession)

		var fs xr.FrameState
		fs.Type = xr.TypeFrameState
		require.Equal(t, xr.Success, c.WaitFrame(session, nil, &fs))
		assert.Greater(t, fs.PredictedDisplayTime, last,
			"successive overlay wait-frames see strictly increasing predicted times")
		last = fs.PredictedDisplayTime
	}
}

func TestEventFanOutRewritesSession(t *testing.T) {
	rt, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)

	var ev xr.EventDataBuffer
	profileChanged := xr.EventDataInteractionProfileChanged{
		Type:    xr.TypeEventDataInteractionProfileChanged,
		Session: mainSession,
	}
	var queued xr.EventDataBuffer
	copyEvent(&queued, unsafe.Pointer(&profileChanged))
	rt.queueEvent(queued)

	// The main app polls; the layer replays a copy to the overlay.
	require.Equal(t, xr.Success, layer.PollEvent(1, &ev))
	require.Equal(t, xr.TypeEventDataInteractionProfileChanged, ev.Type)

	// Drain the overlay's queue; the replayed event must surface with
	// the overlay's local session handle.
	found := false
	for i := 0; i < 32; i++ {
		var oev xr.EventDataBuffer
		res := c.PollEvent(c.Instance(), &oev)
		if res == xr.EventUnavailable {
			break
		}
		require.Equal(t, xr.Success, res)
		if oev.Type == xr.TypeEventDataInteractionProfileChanged {
			got := (*xr.EventDataInteractionProfileChanged)(unsafe.Pointer(&oev))
			assert.Equal(t, session, got.Session)
			found = true
		}
	}
	assert.True(t, found, "replayed event reaches the overlay")
}

// copyEvent captures an event struct into a buffer the way the layer
// stores them.
func copyEvent(dst *xr.EventDataBuffer, src unsafe.Pointer) {
	base := (*xr.BaseOutStructure)(src)
	*dst = xr.EventDataBuffer{Type: base.Type}
	size := unsafe.Sizeof(xr.EventDataInteractionProfileChanged{})
	copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), size), unsafe.Slice((*byte)(src), size))
	dst.Next = nil
}

func TestOverlaySessionLifecycleEvents(t *testing.T) {
	_, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	_ = layer
	_ = mainSession

	// Destroying the overlay session while the main persists buffers a
	// loss-pending event followed by the exiting state change.
	require.Equal(t, xr.Success, c.DestroySession(session))

	var ev xr.EventDataBuffer
	require.Equal(t, xr.Success, c.PollEvent(c.Instance(), &ev))
	assert.Equal(t, xr.TypeEventDataSessionLossPending, ev.Type)

	require.Equal(t, xr.Success, c.PollEvent(c.Instance(), &ev))
	require.Equal(t, xr.TypeEventDataSessionStateChanged, ev.Type)
	change := (*xr.EventDataSessionStateChanged)(unsafe.Pointer(&ev))
	assert.Equal(t, xr.SessionStateExiting, change.State)
}

func TestAbruptOverlayDisconnect(t *testing.T) {
	rt, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)
	mainWaitFrame(t, layer, mainSession)

	sc := makeSwapchain(t, c, session, 2, 2)
	sp := makeSpace(t, c, session)

	var fs xr.FrameState
	fs.Type = xr.TypeFrameState
	require.Equal(t, xr.Success, c.WaitFrame(session, nil, &fs))
	submitQuad(t, c, session, sc, sp, fs.PredictedDisplayTime)

	// Leave an image mid-frame (between wait and release) and vanish.
	var index uint32
	acquireInfo := xr.SwapchainImageAcquireInfo{Type: xr.TypeSwapchainImageAcquireInfo}
	require.Equal(t, xr.Success, c.AcquireSwapchainImage(sc, &acquireInfo, &index))
	waitInfo := xr.SwapchainImageWaitInfo{Type: xr.TypeSwapchainImageWaitInfo, Timeout: xr.Duration(time.Second)}
	require.Equal(t, xr.Success, c.WaitSwapchainImage(sc, &waitInfo))

	c.Close()

	// The servicer observes the closed connection within its wait
	// bound, force-releases holds and discards the cached layers.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		fei := xr.FrameEndInfo{
			Type:                 xr.TypeFrameEndInfo,
			EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
		}
		if layer.EndFrame(mainSession, &fei) == xr.Success && len(rt.lastEndFrameLayers) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("cached overlay layers were not discarded after disconnect")
}

func TestInputAndHaptics(t *testing.T) {
	rt, _, _ := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)

	asCreate := xr.ActionSetCreateInfo{Type: xr.TypeActionSetCreateInfo}
	xr.SetName(asCreate.ActionSetName[:], "gameplay")
	var actionSet xr.ActionSet
	require.Equal(t, xr.Success, c.CreateActionSet(c.Instance(), &asCreate, &actionSet))

	aCreate := xr.ActionCreateInfo{Type: xr.TypeActionCreateInfo, ActionType: xr.ActionTypeBooleanInput}
	xr.SetName(aCreate.ActionName[:], "select")
	var action xr.Action
	require.Equal(t, xr.Success, c.CreateAction(actionSet, &aCreate, &action))

	sets := []xr.ActiveActionSet{{ActionSet: actionSet}}
	syncInfo := xr.ActionsSyncInfo{
		Type:                  xr.TypeActionsSyncInfo,
		CountActiveActionSets: 1,
		ActiveActionSets:      unsafe.Pointer(&sets[0]),
	}
	require.Equal(t, xr.Success, c.SyncActions(session, &syncInfo))

	getInfo := xr.ActionStateGetInfo{Type: xr.TypeActionStateGetInfo, Action: action}
	var state xr.ActionStateBoolean
	state.Type = xr.TypeActionStateBoolean
	require.Equal(t, xr.Success, c.GetActionStateBoolean(session, &getInfo, &state))
	assert.Equal(t, xr.True, state.CurrentState)
	assert.Equal(t, xr.True, state.IsActive)
	assert.Equal(t, xr.Time(77), state.LastChangeTime)

	hapticInfo := xr.HapticActionInfo{Type: xr.TypeHapticActionInfo, Action: action}
	vibration := xr.HapticVibration{Type: xr.TypeHapticVibration, Amplitude: 0.5, Frequency: 60}
	require.Equal(t, xr.Success, c.ApplyHapticFeedback(session, &hapticInfo, (*xr.HapticBaseHeader)(unsafe.Pointer(&vibration))))
	require.Equal(t, xr.Success, c.StopHapticFeedback(session, &hapticInfo))
	assert.Equal(t, 1, rt.hapticApplied)
	assert.Equal(t, 1, rt.hapticStopped)

	// Unknown action handles are rejected locally.
	getInfo.Action = 0xdead
	assert.Equal(t, xr.ErrorHandleInvalid, c.GetActionStateBoolean(session, &getInfo, &state))
}

func TestSpacesAndViews(t *testing.T) {
	_, _, _ = startMain(t)
	c, session := connectOverlay(t, 1)

	space := makeSpace(t, c, session)
	base := makeSpace(t, c, session)

	var location xr.SpaceLocation
	location.Type = xr.TypeSpaceLocation
	require.Equal(t, xr.Success, c.LocateSpace(space, base, 12345, &location))
	assert.Equal(t, uint64(0xF), location.LocationFlags)
	assert.Equal(t, float32(1), location.Pose.Orientation.W)

	var count uint32
	vli := xr.ViewLocateInfo{
		Type:                  xr.TypeViewLocateInfo,
		ViewConfigurationType: xr.ViewConfigurationPrimaryStereo,
		DisplayTime:           12345,
		Space:                 space,
	}
	var viewState xr.ViewState
	viewState.Type = xr.TypeViewState
	views := make([]xr.View, 2)
	for i := range views {
		views[i].Type = xr.TypeView
	}
	require.Equal(t, xr.Success, c.LocateViews(session, &vli, &viewState, 2, &count, views))
	assert.Equal(t, uint32(2), count)
	assert.Equal(t, uint64(0xF), viewState.ViewStateFlags)
	assert.Equal(t, float32(1), views[0].Pose.Orientation.W)

	require.Equal(t, xr.Success, c.DestroySpace(space))

	var name [32]byte
	gi := xr.InputSourceLocalizedNameGetInfo{Type: xr.TypeInputSourceLocalizedNameGetInfo}
	require.Equal(t, xr.Success, c.GetInputSourceLocalizedName(session, &gi, uint32(len(name)), &count, name[:]))
	assert.Equal(t, "Left Hand Trigger", string(name[:count]))
}

func TestEndFrameRejectsInvalidLayerInSubmission(t *testing.T) {
	rt, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)
	mainWaitFrame(t, layer, mainSession)

	sc := makeSwapchain(t, c, session, 2, 2)
	sp := makeSpace(t, c, session)

	var fs xr.FrameState
	fs.Type = xr.TypeFrameState
	require.Equal(t, xr.Success, c.WaitFrame(session, nil, &fs))

	// Seed the cache with a good submission so rejection observably
	// clears it.
	submitQuad(t, c, session, sc, sp, fs.PredictedDisplayTime)

	// A submission whose first layer is valid but whose second is not a
	// quad-or-projection type must be rejected as a whole.
	quad := xr.CompositionLayerQuad{
		Type:  xr.TypeCompositionLayerQuad,
		Space: sp,
		SubImage: xr.SwapchainSubImage{
			Swapchain: sc,
			ImageRect: xr.Rect2Di{Extent: xr.Extent2Di{Width: 2, Height: 2}},
		},
		Pose: xr.IdentityPose(),
		Size: xr.Extent2Df{Width: 0.33, Height: 0.33},
	}
	bogus := xr.FrameState{Type: xr.TypeFrameState}
	layers := []*xr.CompositionLayerBaseHeader{
		(*xr.CompositionLayerBaseHeader)(unsafe.Pointer(&quad)),
		(*xr.CompositionLayerBaseHeader)(unsafe.Pointer(&bogus)),
	}
	fei := xr.FrameEndInfo{
		Type:                 xr.TypeFrameEndInfo,
		DisplayTime:          fs.PredictedDisplayTime,
		EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
	}
	fei.SetLayerList(layers)
	assert.Equal(t, xr.ErrorValidationFailure, c.EndFrame(session, &fei))

	// The rejection discarded the previously cached layers too: the
	// next main end-frame carries only the main submission.
	mainFei := xr.FrameEndInfo{
		Type:                 xr.TypeFrameEndInfo,
		EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
	}
	require.Equal(t, xr.Success, layer.EndFrame(mainSession, &mainFei))
	assert.Empty(t, rt.lastEndFrameLayers, "cached overlay layers must be cleared on rejection")
}

func TestSwapchainDestroyDeferredUntilEndFrame(t *testing.T) {
	rt, layer, mainSession := startMain(t)
	c, session := connectOverlay(t, 1)
	beginOverlaySession(t, c, session)
	mainWaitFrame(t, layer, mainSession)

	sc := makeSwapchain(t, c, session, 2, 2)
	sp := makeSpace(t, c, session)

	var fs xr.FrameState
	fs.Type = xr.TypeFrameState
	require.Equal(t, xr.Success, c.WaitFrame(session, nil, &fs))
	submitQuad(t, c, session, sc, sp, fs.PredictedDisplayTime)

	// The cached layer still references the swapchain, so destruction
	// is parked until the next successful main end-frame.
	require.Equal(t, xr.Success, c.DestroySwapchain(sc))
	rt.mu.Lock()
	remaining := len(rt.swapchains)
	rt.mu.Unlock()
	assert.Equal(t, 1, remaining, "runtime swapchain survives while a cached layer references it")

	fei := xr.FrameEndInfo{
		Type:                 xr.TypeFrameEndInfo,
		DisplayTime:          fs.PredictedDisplayTime,
		EnvironmentBlendMode: xr.EnvironmentBlendModeOpaque,
	}
	require.Equal(t, xr.Success, layer.EndFrame(mainSession, &fei))

	rt.mu.Lock()
	remaining = len(rt.swapchains)
	rt.mu.Unlock()
	assert.Equal(t, 0, remaining, "deferred destroy retried after end-frame")
}

func TestVersionMismatchRejected(t *testing.T) {
	_, _, _ = startMain(t)

	_, err := transport.Connect(LayerBinaryVersion+1, 1<<20, 3*time.Second)
	assert.ErrorIs(t, err, transport.ErrVersionRejected)
}
