//go:build linux && (amd64 || arm64)

package texture

import (
	"fmt"
	"testing"
	"time"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("xr_test_%s_%d", prefix, time.Now().UnixNano())
}

func TestCreateOpenShare(t *testing.T) {
	name := uniqueName("tex")
	producer, err := Create(name, 4, 4, 28)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer producer.Close()

	if producer.Width() != 4 || producer.Height() != 4 {
		t.Fatalf("dimensions %dx%d, want 4x4", producer.Width(), producer.Height())
	}
	if producer.Format() != 28 {
		t.Fatalf("format %d, want 28", producer.Format())
	}

	consumer, err := Open(name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer consumer.Close()

	// Pixels written on one side are visible on the other.
	src := producer.Pixels()
	for i := range src {
		src[i] = byte(i)
	}
	dst := consumer.Pixels()
	if len(dst) != 4*4*4 {
		t.Fatalf("pixel buffer %d bytes, want %d", len(dst), 4*4*4)
	}
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("pixel %d not shared: got %d", i, dst[i])
		}
	}
}

func TestCreateRejectsZeroDimensions(t *testing.T) {
	if _, err := Create(uniqueName("zero"), 0, 4, 28); err == nil {
		t.Fatal("zero width must be rejected")
	}
}

func TestKeyedMutexHandoffAcrossMappings(t *testing.T) {
	name := uniqueName("km")
	producer, err := Create(name, 2, 2, 28)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer producer.Close()

	consumer, err := Open(name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer consumer.Close()

	// The surface starts released under the overlay key.
	if err := producer.AcquireSync(xr.KeyOverlay, time.Second); err != nil {
		t.Fatalf("producer acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- consumer.AcquireSync(xr.KeyMain, 5*time.Second)
	}()

	select {
	case <-done:
		t.Fatal("consumer acquired while producer held the surface")
	case <-time.After(100 * time.Millisecond):
	}

	producer.ReleaseSync(xr.KeyMain)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("consumer acquire failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not woken by the release")
	}

	// Hand it back to the producer.
	consumer.ReleaseSync(xr.KeyOverlay)
	if err := producer.AcquireSync(xr.KeyOverlay, time.Second); err != nil {
		t.Fatalf("producer re-acquire failed: %v", err)
	}
}

func TestGuardReleasesOnce(t *testing.T) {
	name := uniqueName("guard")
	tex, err := Create(name, 2, 2, 28)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer tex.Close()

	g, err := AcquireGuard(tex, xr.KeyOverlay, xr.KeyMain, time.Second)
	if err != nil {
		t.Fatalf("AcquireGuard failed: %v", err)
	}
	if !tex.Held() {
		t.Fatal("guard did not hold the surface")
	}

	g.Release()
	g.Release() // second release is a no-op

	if err := tex.AcquireSync(xr.KeyMain, time.Second); err != nil {
		t.Fatalf("surface not released under the main key: %v", err)
	}
}

func TestGuardKeep(t *testing.T) {
	name := uniqueName("keep")
	tex, err := Create(name, 2, 2, 28)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer tex.Close()

	g, err := AcquireGuard(tex, xr.KeyOverlay, xr.KeyMain, time.Second)
	if err != nil {
		t.Fatalf("AcquireGuard failed: %v", err)
	}
	g.Keep()
	g.Release() // disarmed; must not release

	if !tex.Held() {
		t.Fatal("Keep must retain the hold")
	}

	// The deliberate hand-back happens later, by key.
	tex.ForceRelease(xr.KeyOverlay)
	if err := tex.AcquireSync(xr.KeyOverlay, time.Second); err != nil {
		t.Fatalf("hand-back failed: %v", err)
	}
}

func TestGuardTimeout(t *testing.T) {
	name := uniqueName("timeout")
	tex, err := Create(name, 2, 2, 28)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer tex.Close()

	// Wrong key: the guard must time out rather than acquire.
	if _, err := AcquireGuard(tex, xr.KeyMain, xr.KeyOverlay, 100*time.Millisecond); err != ipc.ErrFutexTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}
