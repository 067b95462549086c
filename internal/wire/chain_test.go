package wire

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

func newArena(t *testing.T) *ipc.Arena {
	t.Helper()
	a := ipc.ArenaAt(make([]byte, 64*1024))
	a.Reset(1)
	return a
}

func TestCopyChainDeep(t *testing.T) {
	a := newArena(t)

	overlayInfo := xr.SessionCreateInfoOverlay{
		Type:                   xr.TypeSessionCreateInfoOverlay,
		SessionLayersPlacement: 3,
		CreateFlags:            xr.OverlaySessionRelaxedDisplayTimeBit,
	}
	binding := xr.GraphicsBindingSharedTexture{
		Type:     xr.TypeGraphicsBindingSharedTexture,
		Next:     unsafe.Pointer(&overlayInfo),
		DeviceID: 99,
	}
	createInfo := xr.SessionCreateInfo{
		Type:     xr.TypeSessionCreateInfo,
		Next:     unsafe.Pointer(&binding),
		SystemID: 7,
	}

	root, err := CopyChain(unsafe.Pointer(&createInfo), CopyEverything, a.Allocate, a.RegisterPointer)
	require.NoError(t, err)
	require.NotNil(t, root)

	got := (*xr.SessionCreateInfo)(root)
	assert.Equal(t, xr.SystemID(7), got.SystemID)

	gotBinding := (*xr.GraphicsBindingSharedTexture)(got.Next)
	require.NotNil(t, gotBinding)
	assert.Equal(t, xr.TypeGraphicsBindingSharedTexture, gotBinding.Type)
	assert.Equal(t, uint64(99), gotBinding.DeviceID)

	gotOverlay := (*xr.SessionCreateInfoOverlay)(gotBinding.Next)
	require.NotNil(t, gotOverlay)
	assert.Equal(t, int32(3), gotOverlay.SessionLayersPlacement)

	// The copy must be inside the arena, not aliasing the source.
	assert.True(t, a.Contains(root))
	assert.True(t, a.Contains(got.Next))
}

func TestCopyChainDropsUnknownNodes(t *testing.T) {
	a := newArena(t)

	binding := xr.GraphicsBindingSharedTexture{
		Type:     xr.TypeGraphicsBindingSharedTexture,
		DeviceID: 5,
	}
	unknown := xr.BaseInStructure{
		Type: xr.StructureType(0xDEAD),
		Next: unsafe.Pointer(&binding),
	}
	createInfo := xr.SessionCreateInfo{
		Type: xr.TypeSessionCreateInfo,
		Next: unsafe.Pointer(&unknown),
	}

	root, err := CopyChain(unsafe.Pointer(&createInfo), CopyEverything, a.Allocate, a.RegisterPointer)
	require.NoError(t, err)

	// The unknown node is dropped; the chain reconnects around it.
	got := (*xr.SessionCreateInfo)(root)
	next := (*xr.BaseInStructure)(got.Next)
	require.NotNil(t, next)
	assert.Equal(t, xr.TypeGraphicsBindingSharedTexture, next.Type)
}

func TestCopyChainHeaderOnly(t *testing.T) {
	a := newArena(t)

	state := xr.FrameState{
		Type:                 xr.TypeFrameState,
		PredictedDisplayTime: 999,
		ShouldRender:         xr.True,
	}
	root, err := CopyChain(unsafe.Pointer(&state), CopyHeaderOnly, a.Allocate, a.RegisterPointer)
	require.NoError(t, err)

	got := (*xr.FrameState)(root)
	assert.Equal(t, xr.TypeFrameState, got.Type)
	assert.Zero(t, got.PredictedDisplayTime, "header-only copies leave the payload for the host")
}

func TestCopyChainFrameEndInfoLayers(t *testing.T) {
	a := newArena(t)

	quad := xr.CompositionLayerQuad{
		Type:  xr.TypeCompositionLayerQuad,
		Space: 11,
		SubImage: xr.SwapchainSubImage{
			Swapchain: 22,
			ImageRect: xr.Rect2Di{Extent: xr.Extent2Di{Width: 4, Height: 4}},
		},
		Pose: xr.IdentityPose(),
	}
	views := []xr.CompositionLayerProjectionView{{
		Type:     xr.TypeCompositionLayerProjectionView,
		SubImage: xr.SwapchainSubImage{Swapchain: 33},
	}}
	proj := xr.CompositionLayerProjection{
		Type:      xr.TypeCompositionLayerProjection,
		Space:     11,
		ViewCount: 1,
		Views:     unsafe.Pointer(&views[0]),
	}
	layers := []*xr.CompositionLayerBaseHeader{
		(*xr.CompositionLayerBaseHeader)(unsafe.Pointer(&quad)),
		(*xr.CompositionLayerBaseHeader)(unsafe.Pointer(&proj)),
	}
	fei := xr.FrameEndInfo{
		Type:        xr.TypeFrameEndInfo,
		DisplayTime: 123,
	}
	fei.SetLayerList(layers)

	root, err := CopyChain(unsafe.Pointer(&fei), CopyEverything, a.Allocate, a.RegisterPointer)
	require.NoError(t, err)

	got := (*xr.FrameEndInfo)(root)
	require.Equal(t, uint32(2), got.LayerCount)
	gotLayers := got.LayerList()
	require.Len(t, gotLayers, 2)

	gotQuad := (*xr.CompositionLayerQuad)(unsafe.Pointer(gotLayers[0]))
	assert.Equal(t, xr.Swapchain(22), gotQuad.SubImage.Swapchain)
	assert.True(t, a.Contains(unsafe.Pointer(gotLayers[0])))

	gotProj := (*xr.CompositionLayerProjection)(unsafe.Pointer(gotLayers[1]))
	require.Equal(t, uint32(1), gotProj.ViewCount)
	gotViews := gotProj.ViewList()
	assert.Equal(t, xr.Swapchain(33), gotViews[0].SubImage.Swapchain)
	assert.True(t, a.Contains(gotProj.Views))
}

func TestCopyChainToHeap(t *testing.T) {
	binding := xr.GraphicsBindingSharedTexture{
		Type:     xr.TypeGraphicsBindingSharedTexture,
		DeviceID: 123,
	}
	createInfo := xr.SessionCreateInfo{
		Type:     xr.TypeSessionCreateInfo,
		Next:     unsafe.Pointer(&binding),
		SystemID: 9,
	}

	hc, err := CopyChainToHeap(unsafe.Pointer(&createInfo))
	require.NoError(t, err)

	got := (*xr.SessionCreateInfo)(hc.Root)
	assert.Equal(t, xr.SystemID(9), got.SystemID)
	gotBinding := (*xr.GraphicsBindingSharedTexture)(got.Next)
	assert.Equal(t, uint64(123), gotBinding.DeviceID)
}

func TestCopyOutChainSkipsMismatchedDestNodes(t *testing.T) {
	// Destination chain carries a node the source (shorter, because the
	// serializer dropped an unknown type) does not have; the walk must
	// re-synchronize on the shared type.
	var unknownDst struct {
		Type xr.StructureType
		Next unsafe.Pointer
		Pad  uint64
	}
	unknownDst.Type = xr.StructureType(0xBEEF)

	dstState := xr.FrameState{Type: xr.TypeFrameState}
	unknownDst.Next = unsafe.Pointer(&dstState)

	srcState := xr.FrameState{
		Type:                   xr.TypeFrameState,
		PredictedDisplayTime:   456,
		PredictedDisplayPeriod: 11,
		ShouldRender:           xr.True,
	}

	CopyOutChain(unsafe.Pointer(&unknownDst), unsafe.Pointer(&srcState))

	assert.Equal(t, xr.Time(456), dstState.PredictedDisplayTime)
	assert.Equal(t, xr.Duration(11), dstState.PredictedDisplayPeriod)
	assert.Equal(t, xr.True, dstState.ShouldRender)
	assert.Zero(t, unknownDst.Pad, "unknown destination node must not be written")
}

func TestCopyEventToBuffer(t *testing.T) {
	change := xr.EventDataSessionStateChanged{
		Type:    xr.TypeEventDataSessionStateChanged,
		Session: 77,
		State:   xr.SessionStateVisible,
		Time:    1234,
	}
	var buf xr.EventDataBuffer
	CopyEventToBuffer(unsafe.Pointer(&change), &buf)

	require.Equal(t, xr.TypeEventDataSessionStateChanged, buf.Type)
	got := (*xr.EventDataSessionStateChanged)(unsafe.Pointer(&buf))
	assert.Equal(t, xr.Session(77), got.Session)
	assert.Equal(t, xr.SessionStateVisible, got.State)
	assert.Nil(t, buf.Next)
}
