//go:build linux && (amd64 || arm64)

package transport

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
)

func cleanupRendezvous(t *testing.T) {
	t.Helper()
	ipc.RemoveSegment(NegotiationSegmentName)
	ipc.RemoveSegment(RPCSegmentName(uint32(os.Getpid())))
}

func TestRPCRequestResponseCycle(t *testing.T) {
	cleanupRendezvous(t)

	overlay, err := CreateRPCChannels(os.Getpid(), DefaultArenaSize)
	require.NoError(t, err)
	defer overlay.Close()

	main, err := OpenRPCChannels(uint32(os.Getpid()))
	require.NoError(t, err)
	defer main.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, main.WaitForRequest())
		main.Arena.Absolutize()
		assert.Equal(t, uint64(42), main.Arena.Header().Opcode())
		main.Arena.Header().SetResult(7)
		main.Arena.Relativize()
		main.FinishResponse()
	}()

	overlay.Mutex.Lock()
	overlay.Arena.Reset(42)
	overlay.Arena.Relativize()
	overlay.FinishRequest()
	require.NoError(t, overlay.WaitForResponse())
	overlay.Arena.Absolutize()
	assert.Equal(t, int32(7), overlay.Arena.Header().Result())
	overlay.Mutex.Unlock()

	wg.Wait()
}

func TestRPCCloseUnblocksServicer(t *testing.T) {
	cleanupRendezvous(t)

	overlay, err := CreateRPCChannels(os.Getpid(), DefaultArenaSize)
	require.NoError(t, err)

	main, err := OpenRPCChannels(uint32(os.Getpid()))
	require.NoError(t, err)
	defer main.Close()

	done := make(chan error, 1)
	go func() {
		done <- main.WaitForRequest()
	}()

	time.Sleep(50 * time.Millisecond)
	overlay.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ipc.ErrSegmentClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("servicer wait did not observe the closed connection")
	}
}

func TestNegotiationAcceptsMatchingVersion(t *testing.T) {
	cleanupRendezvous(t)

	neg, err := CreateNegotiation(0x10)
	require.NoError(t, err)

	type accepted struct {
		ch  *RPCChannels
		pid uint32
	}
	got := make(chan accepted, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		neg.Run(func(ch *RPCChannels, pid uint32) {
			got <- accepted{ch, pid}
		})
	}()

	res, err := Connect(0x10, DefaultArenaSize, 5*time.Second)
	require.NoError(t, err)
	defer res.Channels.Close()

	assert.Equal(t, uint32(os.Getpid()), res.MainPID)

	select {
	case a := <-got:
		assert.Equal(t, uint32(os.Getpid()), a.pid)
		a.ch.Close()
	case <-time.After(3 * time.Second):
		t.Fatal("negotiator did not accept the overlay")
	}

	neg.Stop()
	wg.Wait()
	neg.Close()
}

func TestNegotiationRejectsVersionMismatch(t *testing.T) {
	cleanupRendezvous(t)

	neg, err := CreateNegotiation(0x10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		neg.Run(func(ch *RPCChannels, pid uint32) {
			t.Error("mismatched version must not be accepted")
			ch.Close()
		})
	}()

	_, err = Connect(0x11, DefaultArenaSize, 5*time.Second)
	assert.ErrorIs(t, err, ErrVersionRejected)

	neg.Stop()
	wg.Wait()
	neg.Close()
}

func TestConnectTimesOutWithoutMain(t *testing.T) {
	cleanupRendezvous(t)

	start := time.Now()
	_, err := Connect(0x10, DefaultArenaSize, 700*time.Millisecond)
	assert.ErrorIs(t, err, ErrNegotiationTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
}

func TestSingleMainInstance(t *testing.T) {
	cleanupRendezvous(t)

	neg, err := CreateNegotiation(0x10)
	require.NoError(t, err)
	defer func() {
		neg.Stop()
		neg.Close()
	}()

	_, err = CreateNegotiation(0x10)
	assert.Error(t, err, "a second main instance must be refused")
}

func TestTextureSegmentNames(t *testing.T) {
	name := TextureSegmentName(4242, 0x4F56_0000_0000_0001, 2)
	assert.Contains(t, name, "4242")
	assert.Contains(t, name, "xr_extx_overlay_tex_")
}
