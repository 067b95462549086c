package host

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

func TestAdjustSystemProperties(t *testing.T) {
	props := xr.SystemProperties{
		GraphicsProperties: xr.SystemGraphicsProperties{MaxLayerCount: 16},
	}
	AdjustSystemProperties(&props)
	assert.Equal(t, uint32(16-OverlayLayerBudget), props.GraphicsProperties.MaxLayerCount)

	// A runtime offering less than the reservation reports zero rather
	// than wrapping around.
	props.GraphicsProperties.MaxLayerCount = 1
	AdjustSystemProperties(&props)
	assert.Equal(t, uint32(0), props.GraphicsProperties.MaxLayerCount)
}

func TestValidOverlayLayerType(t *testing.T) {
	assert.True(t, validOverlayLayerType(xr.TypeCompositionLayerQuad))
	assert.True(t, validOverlayLayerType(xr.TypeCompositionLayerProjection))
	assert.False(t, validOverlayLayerType(xr.TypeFrameState))
	assert.False(t, validOverlayLayerType(xr.TypeUnknown))
}
