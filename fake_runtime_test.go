package overlaylayer

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/texture"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// fakeRuntime is an in-memory runtime used to exercise the layer end to
// end. Swapchain images are real shared textures so the bridge's
// release-time copy can be observed.
type fakeRuntime struct {
	mu sync.Mutex

	systemID      xr.SystemID
	maxLayerCount uint32
	formats       []int64

	nextHandle uint64

	sessions   map[xr.Session]bool
	spaces     map[xr.Space]bool
	actionSets map[xr.ActionSet]bool
	actions    map[xr.Action]xr.ActionType

	swapchains map[xr.Swapchain]*fakeSwapchain

	predictedTime xr.Time

	pendingEvents []xr.EventDataBuffer

	lastEndFrameLayers []xr.StructureType
	lastEndFrameSwaps  []xr.Swapchain

	hapticApplied int
	hapticStopped int
}

type fakeSwapchain struct {
	images   []*texture.Texture
	acquired []uint32
	next     uint32
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		systemID:      42,
		maxLayerCount: 16,
		formats:       []int64{87, 28, 29},
		nextHandle:    0x1000,
		sessions:      make(map[xr.Session]bool),
		spaces:        make(map[xr.Space]bool),
		actionSets:    make(map[xr.ActionSet]bool),
		actions:       make(map[xr.Action]xr.ActionType),
		swapchains:    make(map[xr.Swapchain]*fakeSwapchain),
		predictedTime: 1000,
	}
}

func (f *fakeRuntime) handle() uint64 {
	f.nextHandle++
	return f.nextHandle
}

func (f *fakeRuntime) queueEvent(ev xr.EventDataBuffer) {
	f.mu.Lock()
	f.pendingEvents = append(f.pendingEvents, ev)
	f.mu.Unlock()
}

func (f *fakeRuntime) GetSystem(instance xr.Instance, getInfo *xr.SystemGetInfo, systemID *xr.SystemID) xr.Result {
	if systemID != nil {
		*systemID = f.systemID
	}
	return xr.Success
}

func (f *fakeRuntime) GetInstanceProperties(instance xr.Instance, properties *xr.InstanceProperties) xr.Result {
	properties.RuntimeVersion = 0x0001_0000
	xr.SetName(properties.RuntimeName[:], "fake-runtime")
	return xr.Success
}

func (f *fakeRuntime) GetSystemProperties(instance xr.Instance, systemID xr.SystemID, properties *xr.SystemProperties) xr.Result {
	if systemID != f.systemID {
		return xr.ErrorSystemInvalid
	}
	properties.SystemID = f.systemID
	properties.VendorID = 0x1234
	xr.SetName(properties.SystemName[:], "fake-hmd")
	properties.GraphicsProperties = xr.SystemGraphicsProperties{
		MaxSwapchainImageHeight: 2048,
		MaxSwapchainImageWidth:  2048,
		MaxLayerCount:           f.maxLayerCount,
	}
	properties.TrackingProperties = xr.SystemTrackingProperties{
		OrientationTracking: xr.True,
		PositionTracking:    xr.True,
	}
	return xr.Success
}

func (f *fakeRuntime) PollEvent(instance xr.Instance, eventData *xr.EventDataBuffer) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pendingEvents) == 0 {
		return xr.EventUnavailable
	}
	*eventData = f.pendingEvents[0]
	f.pendingEvents = f.pendingEvents[1:]
	return xr.Success
}

func (f *fakeRuntime) CreateSession(instance xr.Instance, createInfo *xr.SessionCreateInfo, session *xr.Session) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := xr.Session(f.handle())
	f.sessions[s] = true
	*session = s
	return xr.Success
}

func (f *fakeRuntime) DestroySession(session xr.Session) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sessions[session] {
		return xr.ErrorHandleInvalid
	}
	delete(f.sessions, session)
	return xr.Success
}

func (f *fakeRuntime) BeginSession(session xr.Session, beginInfo *xr.SessionBeginInfo) xr.Result {
	return xr.Success
}

func (f *fakeRuntime) EndSession(session xr.Session) xr.Result { return xr.Success }

func (f *fakeRuntime) RequestExitSession(session xr.Session) xr.Result { return xr.Success }

// enumerate implements the two-call idiom shared by every enumeration.
func enumerate[T any](src []T, capacityInput uint32, countOutput *uint32, buf []T) xr.Result {
	if countOutput != nil {
		*countOutput = uint32(len(src))
	}
	if capacityInput == 0 {
		return xr.Success
	}
	if capacityInput < uint32(len(src)) {
		return xr.ErrorSizeInsufficient
	}
	copy(buf, src)
	return xr.Success
}

func (f *fakeRuntime) EnumerateViewConfigurations(instance xr.Instance, systemID xr.SystemID, capacityInput uint32, countOutput *uint32, viewConfigurationTypes []xr.ViewConfigurationType) xr.Result {
	return enumerate([]xr.ViewConfigurationType{xr.ViewConfigurationPrimaryStereo}, capacityInput, countOutput, viewConfigurationTypes)
}

func (f *fakeRuntime) GetViewConfigurationProperties(instance xr.Instance, systemID xr.SystemID, viewConfigurationType xr.ViewConfigurationType, properties *xr.ViewConfigurationProperties) xr.Result {
	properties.ViewConfigurationType = viewConfigurationType
	properties.FovMutable = xr.True
	return xr.Success
}

func (f *fakeRuntime) EnumerateViewConfigurationViews(instance xr.Instance, systemID xr.SystemID, viewConfigurationType xr.ViewConfigurationType, capacityInput uint32, countOutput *uint32, views []xr.ViewConfigurationView) xr.Result {
	if countOutput != nil {
		*countOutput = 2
	}
	if capacityInput == 0 {
		return xr.Success
	}
	if capacityInput < 2 {
		return xr.ErrorSizeInsufficient
	}
	for i := 0; i < 2; i++ {
		views[i].RecommendedImageRectWidth = 64
		views[i].MaxImageRectWidth = 2048
		views[i].RecommendedImageRectHeight = 64
		views[i].MaxImageRectHeight = 2048
		views[i].RecommendedSwapchainSampleCount = 1
		views[i].MaxSwapchainSampleCount = 1
	}
	return xr.Success
}

func (f *fakeRuntime) EnumerateSwapchainFormats(session xr.Session, capacityInput uint32, countOutput *uint32, formats []int64) xr.Result {
	return enumerate(f.formats, capacityInput, countOutput, formats)
}

func (f *fakeRuntime) CreateSwapchain(session xr.Session, createInfo *xr.SwapchainCreateInfo, swapchain *xr.Swapchain) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	sc := xr.Swapchain(f.handle())
	fs := &fakeSwapchain{}
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("fake_rt_image_%d_%d_%d", sc, i, time.Now().UnixNano())
		t, err := texture.Create(name, createInfo.Width, createInfo.Height, createInfo.Format)
		if err != nil {
			return xr.ErrorRuntimeFailure
		}
		fs.images = append(fs.images, t)
	}
	f.swapchains[sc] = fs
	*swapchain = sc
	return xr.Success
}

func (f *fakeRuntime) DestroySwapchain(swapchain xr.Swapchain) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	for _, t := range fs.images {
		t.Close()
	}
	delete(f.swapchains, swapchain)
	return xr.Success
}

func (f *fakeRuntime) EnumerateSwapchainImages(swapchain xr.Swapchain, capacityInput uint32, countOutput *uint32, images []xr.SwapchainImageSharedTexture) xr.Result {
	f.mu.Lock()
	fs, ok := f.swapchains[swapchain]
	f.mu.Unlock()
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if countOutput != nil {
		*countOutput = uint32(len(fs.images))
	}
	if capacityInput == 0 {
		return xr.Success
	}
	if capacityInput < uint32(len(fs.images)) {
		return xr.ErrorSizeInsufficient
	}
	for i, t := range fs.images {
		images[i].Type = xr.TypeSwapchainImageSharedTexture
		xr.SetName(images[i].Name[:], t.Name())
	}
	return xr.Success
}

func (f *fakeRuntime) AcquireSwapchainImage(swapchain xr.Swapchain, acquireInfo *xr.SwapchainImageAcquireInfo, index *uint32) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	idx := fs.next % uint32(len(fs.images))
	fs.next++
	fs.acquired = append(fs.acquired, idx)
	if index != nil {
		*index = idx
	}
	return xr.Success
}

func (f *fakeRuntime) WaitSwapchainImage(swapchain xr.Swapchain, waitInfo *xr.SwapchainImageWaitInfo) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if len(fs.acquired) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	return xr.Success
}

func (f *fakeRuntime) ReleaseSwapchainImage(swapchain xr.Swapchain, releaseInfo *xr.SwapchainImageReleaseInfo) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.swapchains[swapchain]
	if !ok {
		return xr.ErrorHandleInvalid
	}
	if len(fs.acquired) == 0 {
		return xr.ErrorCallOrderInvalid
	}
	fs.acquired = fs.acquired[1:]
	return xr.Success
}

func (f *fakeRuntime) CreateReferenceSpace(session xr.Session, createInfo *xr.ReferenceSpaceCreateInfo, space *xr.Space) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp := xr.Space(f.handle())
	f.spaces[sp] = true
	*space = sp
	return xr.Success
}

func (f *fakeRuntime) CreateActionSpace(session xr.Session, createInfo *xr.ActionSpaceCreateInfo, space *xr.Space) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.actions[createInfo.Action]; !ok {
		return xr.ErrorHandleInvalid
	}
	sp := xr.Space(f.handle())
	f.spaces[sp] = true
	*space = sp
	return xr.Success
}

func (f *fakeRuntime) LocateSpace(space xr.Space, baseSpace xr.Space, time xr.Time, location *xr.SpaceLocation) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.spaces[space] || !f.spaces[baseSpace] {
		return xr.ErrorHandleInvalid
	}
	location.LocationFlags = 0xF
	location.Pose = xr.IdentityPose()
	return xr.Success
}

func (f *fakeRuntime) DestroySpace(space xr.Space) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.spaces[space] {
		return xr.ErrorHandleInvalid
	}
	delete(f.spaces, space)
	return xr.Success
}

func (f *fakeRuntime) WaitFrame(session xr.Session, frameWaitInfo *xr.FrameWaitInfo, frameState *xr.FrameState) xr.Result {
	f.mu.Lock()
	f.predictedTime += 11
	t := f.predictedTime
	f.mu.Unlock()
	frameState.PredictedDisplayTime = t
	frameState.PredictedDisplayPeriod = 11
	frameState.ShouldRender = xr.True
	return xr.Success
}

func (f *fakeRuntime) BeginFrame(session xr.Session, frameBeginInfo *xr.FrameBeginInfo) xr.Result {
	return xr.Success
}

func (f *fakeRuntime) EndFrame(session xr.Session, frameEndInfo *xr.FrameEndInfo) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEndFrameLayers = nil
	f.lastEndFrameSwaps = nil
	for _, layer := range frameEndInfo.LayerList() {
		f.lastEndFrameLayers = append(f.lastEndFrameLayers, layer.Type)
		if layer.Type == xr.TypeCompositionLayerQuad {
			q := (*xr.CompositionLayerQuad)(unsafe.Pointer(layer))
			f.lastEndFrameSwaps = append(f.lastEndFrameSwaps, q.SubImage.Swapchain)
		}
	}
	return xr.Success
}

func (f *fakeRuntime) LocateViews(session xr.Session, viewLocateInfo *xr.ViewLocateInfo, viewState *xr.ViewState, capacityInput uint32, countOutput *uint32, views []xr.View) xr.Result {
	if countOutput != nil {
		*countOutput = 2
	}
	if capacityInput == 0 {
		return xr.Success
	}
	if capacityInput < 2 {
		return xr.ErrorSizeInsufficient
	}
	viewState.ViewStateFlags = 0xF
	for i := 0; i < 2; i++ {
		views[i].Pose = xr.IdentityPose()
	}
	return xr.Success
}

func (f *fakeRuntime) CreateActionSet(instance xr.Instance, createInfo *xr.ActionSetCreateInfo, actionSet *xr.ActionSet) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	as := xr.ActionSet(f.handle())
	f.actionSets[as] = true
	*actionSet = as
	return xr.Success
}

func (f *fakeRuntime) DestroyActionSet(actionSet xr.ActionSet) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.actionSets[actionSet] {
		return xr.ErrorHandleInvalid
	}
	delete(f.actionSets, actionSet)
	return xr.Success
}

func (f *fakeRuntime) CreateAction(actionSet xr.ActionSet, createInfo *xr.ActionCreateInfo, action *xr.Action) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.actionSets[actionSet] {
		return xr.ErrorHandleInvalid
	}
	ac := xr.Action(f.handle())
	f.actions[ac] = createInfo.ActionType
	*action = ac
	return xr.Success
}

func (f *fakeRuntime) DestroyAction(action xr.Action) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.actions[action]; !ok {
		return xr.ErrorHandleInvalid
	}
	delete(f.actions, action)
	return xr.Success
}

func (f *fakeRuntime) SyncActions(session xr.Session, syncInfo *xr.ActionsSyncInfo) xr.Result {
	return xr.Success
}

func (f *fakeRuntime) GetActionStateBoolean(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateBoolean) xr.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.actions[getInfo.Action]; !ok {
		return xr.ErrorHandleInvalid
	}
	state.CurrentState = xr.True
	state.IsActive = xr.True
	state.LastChangeTime = 77
	return xr.Success
}

func (f *fakeRuntime) GetActionStateFloat(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateFloat) xr.Result {
	state.CurrentState = 0.5
	state.IsActive = xr.True
	return xr.Success
}

func (f *fakeRuntime) GetActionStateVector2f(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStateVector2f) xr.Result {
	state.CurrentX = 0.25
	state.CurrentY = -0.25
	state.IsActive = xr.True
	return xr.Success
}

func (f *fakeRuntime) GetActionStatePose(session xr.Session, getInfo *xr.ActionStateGetInfo, state *xr.ActionStatePose) xr.Result {
	state.IsActive = xr.True
	return xr.Success
}

func (f *fakeRuntime) ApplyHapticFeedback(session xr.Session, hapticActionInfo *xr.HapticActionInfo, hapticFeedback *xr.HapticBaseHeader) xr.Result {
	f.mu.Lock()
	f.hapticApplied++
	f.mu.Unlock()
	return xr.Success
}

func (f *fakeRuntime) StopHapticFeedback(session xr.Session, hapticActionInfo *xr.HapticActionInfo) xr.Result {
	f.mu.Lock()
	f.hapticStopped++
	f.mu.Unlock()
	return xr.Success
}

func (f *fakeRuntime) GetInputSourceLocalizedName(session xr.Session, getInfo *xr.InputSourceLocalizedNameGetInfo, capacityInput uint32, countOutput *uint32, buffer []byte) xr.Result {
	name := []byte("Left Hand Trigger")
	return enumerate(name, capacityInput, countOutput, buffer)
}

var _ xr.Runtime = (*fakeRuntime)(nil)
