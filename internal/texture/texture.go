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

// Package texture implements the shared GPU surface the swapchain bridge
// moves between processes: a shared-memory pixel buffer with an embedded
// keyed mutex. The overlay side creates surfaces and renders under
// KeyOverlay; the main side opens them by name and copies under KeyMain.
package texture

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
)

// bytesPerPixel is fixed: every bridgeable format is a 4-byte color
// format.
const bytesPerPixel = 4

// header sits at the start of the segment body. The keyed-mutex word
// must stay first; both processes futex-wait on it.
type header struct {
	keyedMutex uint32
	_          uint32
	width      uint32
	height     uint32
	format     int64
}

const headerSize = unsafe.Sizeof(header{})

// Texture is one shared surface. Both sides hold a Texture over the
// same segment; ownership of the pixels is arbitrated by the keyed
// mutex, never by Go-level locking.
type Texture struct {
	seg  *ipc.Segment
	name string
	km   *ipc.KeyedMutex
}

func (t *Texture) hdr() *header {
	return (*header)(t.seg.BodyPointer(0))
}

// Create creates a shared surface. The creating (overlay) side owns the
// backing segment; the keyed mutex starts released under KeyOverlay so
// the producer can acquire it first.
func Create(name string, width, height uint32, format int64) (*Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("texture %s: zero dimension %dx%d", name, width, height)
	}
	body := uint64(headerSize) + uint64(width)*uint64(height)*bytesPerPixel
	seg, err := ipc.CreateSegment(name, body)
	if err != nil {
		return nil, fmt.Errorf("create texture segment: %w", err)
	}
	t := &Texture{seg: seg, name: name}
	h := t.hdr()
	h.width = width
	h.height = height
	h.format = format
	t.km = ipc.KeyedMutexAt(unsafe.Pointer(&h.keyedMutex))
	return t, nil
}

// Open maps an existing shared surface by name. The main side calls
// this on first use of a handle and caches the result.
func Open(name string) (*Texture, error) {
	seg, err := ipc.OpenSegment(name)
	if err != nil {
		return nil, fmt.Errorf("open texture segment: %w", err)
	}
	t := &Texture{seg: seg, name: name}
	t.km = ipc.KeyedMutexAt(unsafe.Pointer(&t.hdr().keyedMutex))
	return t, nil
}

// Name returns the shared-surface name; it is the cross-process handle.
func (t *Texture) Name() string { return t.name }

// Width returns the surface width in pixels.
func (t *Texture) Width() uint32 { return t.hdr().width }

// Height returns the surface height in pixels.
func (t *Texture) Height() uint32 { return t.hdr().height }

// Format returns the surface pixel format.
func (t *Texture) Format() int64 { return t.hdr().format }

// Pixels returns the surface contents. Callers must hold the keyed
// mutex while touching them.
func (t *Texture) Pixels() []byte {
	h := t.hdr()
	n := int(h.width) * int(h.height) * bytesPerPixel
	return t.seg.Body()[headerSize : int(headerSize)+n]
}

// AcquireSync blocks until the surface is released under key and holds
// it. A non-positive timeout waits forever.
func (t *Texture) AcquireSync(key uint64, timeout time.Duration) error {
	return t.km.AcquireSync(key, timeout)
}

// ReleaseSync releases the surface under key.
func (t *Texture) ReleaseSync(key uint64) {
	t.km.ReleaseSync(key)
}

// Held reports whether either side currently holds the surface.
func (t *Texture) Held() bool { return t.km.Held() }

// ForceRelease releases the surface under key regardless of who held
// it. The main side uses it to recover surfaces an abruptly terminated
// overlay still held.
func (t *Texture) ForceRelease(key uint64) {
	t.km.ReleaseSync(key)
}

// Close unmaps the surface; the creating side also unlinks it.
func (t *Texture) Close() error {
	return t.seg.Close()
}

// Guard is a scoped keyed-mutex hold: acquired on construction,
// released at most once, so an early return between wait and release
// cannot leave the mutex held.
type Guard struct {
	t          *Texture
	releaseKey uint64
	released   bool
}

// AcquireGuard acquires the surface under acquireKey and arranges for
// release under releaseKey.
func AcquireGuard(t *Texture, acquireKey, releaseKey uint64, timeout time.Duration) (*Guard, error) {
	if err := t.AcquireSync(acquireKey, timeout); err != nil {
		return nil, err
	}
	return &Guard{t: t, releaseKey: releaseKey}, nil
}

// Release releases the hold. Safe to call more than once.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.t.ReleaseSync(g.releaseKey)
}

// ReleaseAs releases the hold under a different key than planned.
func (g *Guard) ReleaseAs(key uint64) {
	if g.released {
		return
	}
	g.released = true
	g.t.ReleaseSync(key)
}

// Keep retains the hold deliberately: the guard is disarmed without
// releasing the mutex. The holder releases later by key, typically when
// handing the surface back to the producer.
func (g *Guard) Keep() {
	g.released = true
}
